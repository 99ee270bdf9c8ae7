package worker

import (
	"fmt"
	"time"

	"github.com/toolweave-ai/sdk/tool"
)

// Item is a single unit of work submitted to the work queue. It names the
// tool to run, carries its arguments, and identifies the caller on whose
// behalf the execution runs.
type Item struct {
	// JobID is a UUID that correlates all items in a batch.
	JobID string `json:"job_id"`

	// Index is the position of this item in the batch (0-based).
	Index int `json:"index"`

	// Total is the number of items in the batch.
	Total int `json:"total"`

	// Tool is the name of the tool to execute.
	Tool string `json:"tool"`

	// Args are the tool arguments.
	Args map[string]any `json:"args"`

	// Caller identity, copied into the execution context.
	TenantID  string `json:"tenant_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// TraceID and ParentSpanID let executions join the submitter's trace.
	TraceID      string `json:"trace_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`

	// SubmittedAt is the Unix timestamp in milliseconds when the item was
	// enqueued.
	SubmittedAt int64 `json:"submitted_at"`
}

// IsValid checks that the item has all required fields populated.
func (it *Item) IsValid() error {
	if it.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if it.Index < 0 {
		return fmt.Errorf("index must be non-negative, got %d", it.Index)
	}
	if it.Total <= 0 {
		return fmt.Errorf("total must be positive, got %d", it.Total)
	}
	if it.Index >= it.Total {
		return fmt.Errorf("index %d is out of bounds for total %d", it.Index, it.Total)
	}
	if it.Tool == "" {
		return fmt.Errorf("tool name is required")
	}
	if it.SubmittedAt <= 0 {
		return fmt.Errorf("submitted_at must be positive, got %d", it.SubmittedAt)
	}
	return nil
}

// Age returns the time the item has spent waiting since submission.
func (it *Item) Age() time.Duration {
	if it.SubmittedAt <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixMilli()-it.SubmittedAt) * time.Millisecond
}

// Outcome is the result of executing an Item. It is published to a
// job-specific channel for the submitter to collect.
type Outcome struct {
	// JobID correlates this outcome with the original item.
	JobID string `json:"job_id"`

	// Index is the position of this outcome in the batch.
	Index int `json:"index"`

	// Result is the full execution result, including failures. Nil only when
	// Error is set.
	Result *tool.Result `json:"result,omitempty"`

	// Error is set when the item could not be executed at all, e.g. an
	// invalid item or an unknown tool.
	Error string `json:"error,omitempty"`

	// WorkerID identifies the worker that processed the item.
	WorkerID string `json:"worker_id"`

	// StartedAt and CompletedAt are Unix timestamps in milliseconds.
	StartedAt   int64 `json:"started_at"`
	CompletedAt int64 `json:"completed_at"`
}

// HasError reports whether the item failed before reaching the executor.
func (o *Outcome) HasError() bool {
	return o.Error != ""
}

// Duration returns the wall-clock time spent processing the item.
func (o *Outcome) Duration() time.Duration {
	if o.StartedAt <= 0 || o.CompletedAt <= 0 {
		return 0
	}
	return time.Duration(o.CompletedAt-o.StartedAt) * time.Millisecond
}
