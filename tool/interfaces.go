package tool

import (
	"context"
	"time"
)

// Invoker is the opaque operation a tool ultimately performs. The concrete
// network or database protocol behind it is out of scope for the core; the
// executor only needs something it can call and something that can fail.
type Invoker interface {
	// Invoke performs the operation with validated arguments and returns
	// structured content or an error.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, args map[string]any) (any, error)

// Invoke calls the wrapped function.
func (f InvokerFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Validator checks arguments against a spec's parameter schema before
// execution. Implementations return a non-retryable validation error on
// malformed, missing, or out-of-range arguments.
type Validator interface {
	Validate(ctx context.Context, args map[string]any, spec *Spec) error
}

// Security performs authorization and egress checks before execution.
// Both checks fail with non-retryable errors.
type Security interface {
	// Authorize verifies the caller may run the tool at all.
	Authorize(ctx context.Context, tc *Context, spec *Spec) error

	// CheckEgress verifies the arguments do not target a disallowed
	// outbound destination.
	CheckEgress(ctx context.Context, args map[string]any, spec *Spec) error
}

// Memory is the cache store backing idempotency. Keys are opaque strings;
// values are opaque bytes. Implementations must honor TTLs and provide a
// best-effort scoped lock.
type Memory interface {
	// Get returns the value stored under key, or (nil, false, nil) when
	// the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL. Zero TTL means no
	// expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetIfAbsent stores value only when key is absent, reporting whether
	// the write happened.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Lock acquires a scoped lock on key, held for at most ttl, and
	// returns the release function. The release function must be called
	// on every exit path.
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Metrics is the sink for execution counters and timings. Implementations
// must be safe for concurrent use and must never fail the execution path.
type Metrics interface {
	// Incr increments a counter by value.
	Incr(ctx context.Context, name string, value int64, tags map[string]string)

	// Observe records a value in a distribution.
	Observe(ctx context.Context, name string, value float64, tags map[string]string)

	// TimingMS records a duration in milliseconds.
	TimingMS(ctx context.Context, name string, ms int64, tags map[string]string)
}

// Tracer opens scoped spans around pipeline stages. Span returns the derived
// context, the span identifier, and the function that ends the span; the end
// function must be called on every exit path.
type Tracer interface {
	Span(ctx context.Context, name string, attrs map[string]any) (context.Context, string, func(err error))
}

// Limiter grants rate-limit slots scoped to a key. Acquire blocks until a
// slot is available or the context is done, and returns the release
// function; the release function must be called on every exit path.
type Limiter interface {
	Acquire(ctx context.Context, key string) (func(), error)
}
