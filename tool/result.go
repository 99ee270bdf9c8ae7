package tool

import (
	"encoding/json"
)

// Usage is the observability record attached to every Result. Test suites
// and callers assert against it rather than inspecting internal state.
type Usage struct {
	// InputBytes and OutputBytes are the serialized argument and content
	// sizes.
	InputBytes  int `json:"input_bytes"`
	OutputBytes int `json:"output_bytes"`

	// TokensIn and TokensOut are size-derived token estimates.
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`

	// CostUSD is the estimated cost of the call.
	CostUSD float64 `json:"cost_usd"`

	// Attempts counts invocations of the underlying operation, including
	// the first call. Retries is Attempts minus one, floored at zero.
	Attempts int `json:"attempts"`
	Retries  int `json:"retries"`

	// CachedHit reports that the result came from a cache.
	CachedHit bool `json:"cached_hit"`

	// IdempotencyReused reports that a previously stored result was
	// returned without invoking the operation.
	IdempotencyReused bool `json:"idempotency_reused"`

	// CircuitOpened reports that the circuit breaker rejected the call.
	CircuitOpened bool `json:"circuit_opened"`
}

// Result is the uniform outcome of a tool execution. Exactly one Result is
// produced per call, on success and failure alike; failures are carried in
// Content and Warnings, never raised to the caller.
type Result struct {
	// Content is the operation's structured output. On failure it is an
	// error payload of the form {"error": "..."} with the error code
	// under "code".
	Content any `json:"content"`

	// Artifacts holds optional binary outputs keyed by name.
	Artifacts map[string][]byte `json:"artifacts,omitempty"`

	// Usage is the observability record for this call.
	Usage *Usage `json:"usage,omitempty"`

	// LatencyMS is the wall-clock duration of the call.
	LatencyMS int64 `json:"latency_ms,omitempty"`

	// Warnings carries human-readable failure and degradation messages.
	Warnings []string `json:"warnings,omitempty"`

	// Logs carries execution log lines surfaced to the caller.
	Logs []string `json:"logs,omitempty"`
}

// IsError reports whether the result carries an error payload.
func (r *Result) IsError() bool {
	content, ok := r.Content.(map[string]any)
	if !ok {
		return false
	}
	_, has := content["error"]
	return has
}

// ErrorMessage returns the error payload message, or "" for success results.
func (r *Result) ErrorMessage() string {
	content, ok := r.Content.(map[string]any)
	if !ok {
		return ""
	}
	msg, _ := content["error"].(string)
	return msg
}

// ErrorCode returns the error payload code, or "" for success results.
func (r *Result) ErrorCode() string {
	content, ok := r.Content.(map[string]any)
	if !ok {
		return ""
	}
	code, _ := content["code"].(string)
	return code
}

// Marshal serializes the result for the idempotency cache.
func (r *Result) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalResult reconstructs a cached result.
func UnmarshalResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
