// Package sdk is the root of the Toolweave tool-execution SDK.
//
// The SDK runs opaque tool operations under a declarative resilience policy:
// argument validation, authorization and egress checks, idempotency-aware
// caching, rate limiting, tracing, retries, and circuit breaking. The caller
// always receives a uniform result, never an error.
//
// # Core Concepts
//
//   - Specs: declarative descriptions of a tool — identity, parameter schema,
//     and resilience configuration (package tool)
//   - Executor: the pipeline that runs one tool under its spec (package exec)
//   - Collaborators: narrow interfaces for validation, security, memory,
//     metrics, tracing, and rate limiting, injected per call through the
//     tool.Context
//   - Workers: Redis-queue-driven pools that run queued executions (package
//     worker)
//
// # Getting Started
//
// Build a spec, wire an executor, and execute:
//
//	spec, err := tool.NewSpec().
//		SetID("charge-card-v1").
//		SetName("charge_card").
//		SetRetry(tool.RetryConfig{Strategy: tool.RetryExponential}).
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ex, err := exec.New(spec, tool.InvokerFunc(chargeCard), exec.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result := ex.Execute(ctx, tc, map[string]any{"order_id": "ord-1"})
//	if result.IsError() {
//		log.Printf("charge failed: %s", result.ErrorMessage())
//	}
//
// Specs can also be loaded from tool.yaml files (package component) and
// published to an in-memory or etcd-backed registry (package registry).
//
// # Error Handling
//
// Failures inside the pipeline are classified by package toolerr and folded
// into the result at the execution boundary. The root package provides
// SDKError for infrastructure-level failures around the pipeline — loading
// specs, connecting stores, running workers:
//
//	if errors.Is(err, sdk.ErrInvalidConfig) {
//		// handle bad configuration
//	}
//
// # Thread Safety
//
// Executors, registries, queues, and all collaborator implementations are
// safe for concurrent use.
package sdk
