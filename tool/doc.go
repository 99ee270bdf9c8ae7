// Package tool defines the data model for the tool execution core: the
// immutable Spec describing an operation and its resilience configuration,
// the per-call Context bundling identity and injected collaborators, the
// uniform Result returned from every execution, and the narrow collaborator
// interfaces (Validator, Security, Memory, Metrics, Tracer, Limiter) that
// the executor composes around an opaque operation.
//
// Specs are created once through the builder and never mutated afterwards:
//
//	spec, err := tool.NewSpec().
//	    SetID("charge-card-v1").
//	    SetName("charge_card").
//	    SetDescription("Charge a payment card").
//	    SetKind(tool.KindFunction).
//	    AddParameter(tool.Parameter{Name: "order_id", Type: tool.TypeString, Required: true}).
//	    Build()
//
// Contexts are built per call and discarded afterwards:
//
//	ctx := tool.NewContext().
//	    SetUserID("u-42").
//	    SetSessionID("s-7").
//	    SetMemory(store).
//	    Build()
package tool
