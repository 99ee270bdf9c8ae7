package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolweave-ai/sdk/tool"
)

func validItem() Item {
	return Item{
		JobID:       "job-1",
		Index:       0,
		Total:       2,
		Tool:        "search",
		Args:        map[string]any{"query": "widgets"},
		SubmittedAt: time.Now().UnixMilli(),
	}
}

func TestItemIsValid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Item)
		wantErr string
	}{
		{"valid", func(*Item) {}, ""},
		{"missing job id", func(it *Item) { it.JobID = "" }, "job_id is required"},
		{"negative index", func(it *Item) { it.Index = -1 }, "index must be non-negative"},
		{"zero total", func(it *Item) { it.Total = 0 }, "total must be positive"},
		{"index out of bounds", func(it *Item) { it.Index = 2 }, "out of bounds"},
		{"missing tool", func(it *Item) { it.Tool = "" }, "tool name is required"},
		{"missing submitted at", func(it *Item) { it.SubmittedAt = 0 }, "submitted_at must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem()
			tt.mutate(&item)
			err := item.IsValid()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestItemAge(t *testing.T) {
	item := validItem()
	item.SubmittedAt = time.Now().Add(-time.Second).UnixMilli()
	assert.GreaterOrEqual(t, item.Age(), time.Second)

	item.SubmittedAt = 0
	assert.Equal(t, time.Duration(0), item.Age())
}

func TestOutcomeDuration(t *testing.T) {
	outcome := Outcome{StartedAt: 1000, CompletedAt: 1250}
	assert.Equal(t, 250*time.Millisecond, outcome.Duration())

	incomplete := Outcome{StartedAt: 1000}
	assert.Equal(t, time.Duration(0), incomplete.Duration())
}

func TestOutcomeHasError(t *testing.T) {
	assert.True(t, (&Outcome{Error: "unknown tool: x"}).HasError())
	assert.False(t, (&Outcome{Result: &tool.Result{}}).HasError())
}
