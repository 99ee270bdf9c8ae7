// Package exec orchestrates tool execution: validation, authorization,
// egress checks, idempotency-aware caching, rate limiting, tracing, and a
// circuit-breaker-wrapped retrying invocation of the underlying operation.
//
// One Executor is built per tool spec and is safe for concurrent use. All
// resilience behavior is selected by the spec's strategy-tagged
// configuration; all collaborators arrive on the per-call tool.Context, and
// a nil collaborator disables its stage.
//
// Execute never returns an error. Every failure path produces a normal
// tool.Result whose content carries an error payload and whose warnings
// carry a human-readable message:
//
//	spec, _ := tool.NewSpec().
//	    SetID("charge-card-v1").
//	    SetName("charge_card").
//	    Build()
//	executor, _ := exec.New(spec, tool.InvokerFunc(charge), exec.Options{})
//
//	result := executor.Execute(ctx, tc, args)
//	if result.IsError() {
//	    // inspect result.ErrorCode() and result.Warnings
//	}
package exec
