package exec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/toolweave-ai/sdk/breaker"
	"github.com/toolweave-ai/sdk/idempotency"
	"github.com/toolweave-ai/sdk/memory"
	"github.com/toolweave-ai/sdk/retry"
	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
)

// Metric names emitted by the executor.
const (
	MetricExecutions    = "tool.executions"
	MetricExecutionTime = "tool.execution_time"
	MetricFailures      = "tool.execution.failed"
)

// lockRetryInterval paces attempts to take the idempotency lock when another
// execution of the same key holds it.
const lockRetryInterval = 50 * time.Millisecond

// Estimator derives a token or cost estimate from serialized byte sizes.
type Estimator func(inputBytes, outputBytes int) float64

// Options tunes an Executor beyond what the spec configures. The zero value
// is fully usable.
type Options struct {
	// Logger receives staged execution logs. Nil means slog.Default.
	Logger *slog.Logger

	// Generator overrides the idempotency key generator selected from the
	// spec's idempotency configuration.
	Generator idempotency.Generator

	// Retry overrides the retry policy selected from the spec's retry
	// configuration.
	Retry retry.Policy

	// Breakers is the shared circuit-breaker registry. Executors sharing
	// a registry share breaker state per tool name. Nil means a private
	// registry.
	Breakers *breaker.Registry

	// LimiterKey derives the rate-limit scope key for a call. Nil scopes
	// by tool name.
	LimiterKey func(tc *tool.Context, spec *tool.Spec) string

	// Tokens estimates token counts from byte sizes. Nil uses a
	// bytes-per-token heuristic.
	Tokens Estimator

	// Cost estimates the call cost in USD. Nil reports zero.
	Cost Estimator
}

// bytesPerToken is the default size-derived token estimate.
const bytesPerToken = 4

// Executor runs one tool's operation under the spec's resilience policies.
type Executor struct {
	spec    *tool.Spec
	invoker tool.Invoker
	logger  *slog.Logger

	generator  idempotency.Generator
	retry      retry.Policy
	breaker    breaker.Breaker
	limiterKey func(tc *tool.Context, spec *tool.Spec) string
	tokens     Estimator
	cost       Estimator
}

// New builds an Executor for the spec and its underlying operation.
func New(spec *tool.Spec, invoker tool.Invoker, opts Options) (*Executor, error) {
	if spec == nil {
		return nil, errors.New("exec: spec is required")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if invoker == nil {
		return nil, errors.New("exec: invoker is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	generator := opts.Generator
	if generator == nil {
		generator = idempotency.FromConfig(spec.Idempotency)
	}
	retryPolicy := opts.Retry
	if retryPolicy == nil {
		retryPolicy = retry.FromConfig(spec.Retry)
	}
	registry := opts.Breakers
	if registry == nil {
		registry = breaker.NewRegistry()
	}
	limiterKey := opts.LimiterKey
	if limiterKey == nil {
		limiterKey = func(tc *tool.Context, spec *tool.Spec) string { return spec.Name }
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = func(in, out int) float64 { return float64((in + out) / bytesPerToken) }
	}
	cost := opts.Cost
	if cost == nil {
		cost = func(in, out int) float64 { return 0 }
	}

	return &Executor{
		spec:       spec,
		invoker:    invoker,
		logger:     logger.With("tool", spec.Name),
		generator:  generator,
		retry:      retryPolicy,
		breaker:    registry.For(spec.Name, spec.CircuitBreaker),
		limiterKey: limiterKey,
		tokens:     tokens,
		cost:       cost,
	}, nil
}

// Spec returns the spec this executor was built for.
func (e *Executor) Spec() *tool.Spec {
	return e.spec
}

// Execute runs the tool. It returns a Result on every path, never an error:
// failures are converted into a Result carrying an error payload and a
// human-readable warning.
func (e *Executor) Execute(ctx context.Context, tc *tool.Context, args map[string]any) *tool.Result {
	if tc == nil {
		tc = &tool.Context{}
	}
	if tc.RunID == "" {
		tc.RunID = uuid.NewString()
	}
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	logger := e.logger.With("run_id", tc.RunID, "user_id", tc.UserID)
	logger.Info("starting tool execution")

	run := &execution{
		exec:   e,
		tc:     tc,
		args:   args,
		logger: logger,
		usage:  &tool.Usage{},
	}
	result, err := run.do(ctx)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		logger.Error("tool execution failed",
			"error", err, "execution_time_ms", elapsed)
		e.emitMetrics(ctx, tc, "error", elapsed)
		return e.failure(err, run.usage, elapsed)
	}

	result.LatencyMS = elapsed
	logger.Info("tool execution completed", "execution_time_ms", elapsed)
	e.emitMetrics(ctx, tc, "success", elapsed)
	return result
}

// execution carries the per-call state threaded through the pipeline.
type execution struct {
	exec   *Executor
	tc     *tool.Context
	args   map[string]any
	logger *slog.Logger
	usage  *tool.Usage

	idemKey    string
	bypassed   bool
	cache      *idempotency.Cache
	lockHandle func()
}

// do runs the ordered pipeline and returns an explicit error on failure;
// conversion to the never-fails Result contract happens in Execute.
func (x *execution) do(ctx context.Context) (*tool.Result, error) {
	spec := x.exec.spec

	if err := x.validate(ctx); err != nil {
		return nil, err
	}
	if err := x.authorize(ctx); err != nil {
		return nil, err
	}

	defer x.idempotencyEnd()
	if cached, err := x.idempotencyBegin(ctx); err != nil {
		return nil, err
	} else if cached != nil {
		return cached, nil
	}

	if x.tc.Limiter != nil {
		release, err := x.tc.Limiter.Acquire(ctx, x.exec.limiterKey(x.tc, spec))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	content, err := x.invoke(ctx)
	if err != nil {
		return nil, err
	}

	result := x.assemble(content)
	x.idempotencyStore(ctx, result)
	return result, nil
}

func (x *execution) validate(ctx context.Context) error {
	if x.tc.Validator == nil {
		x.logger.Warn("no validator available - skipping parameter validation")
		return nil
	}
	x.logger.Debug("validating parameters")
	if err := x.tc.Validator.Validate(ctx, x.args, x.exec.spec); err != nil {
		return err
	}
	x.logger.Debug("parameter validation passed")
	return nil
}

func (x *execution) authorize(ctx context.Context) error {
	if x.tc.Security == nil {
		x.logger.Warn("no security component available - skipping authorization and egress checks")
		return nil
	}
	x.logger.Debug("checking authorization")
	if err := x.tc.Security.Authorize(ctx, x.tc, x.exec.spec); err != nil {
		return err
	}
	x.logger.Debug("checking egress permissions")
	if err := x.tc.Security.CheckEgress(ctx, x.args, x.exec.spec); err != nil {
		return err
	}
	return nil
}

// idempotencyBegin computes the key, takes the scoped lock, and performs the
// cache lookup. A non-nil result is a reusable cached hit. The lock is held
// until idempotencyEnd so that lookup, invoke, and store run at most once
// concurrently per key.
func (x *execution) idempotencyBegin(ctx context.Context) (*tool.Result, error) {
	spec := x.exec.spec
	if !spec.Idempotency.Enabled || x.tc.Memory == nil {
		if spec.Idempotency.Enabled {
			x.logger.Warn("no memory store available - skipping idempotency")
		}
		return nil, nil
	}

	key, err := x.exec.generator.Key(x.args, x.tc, spec)
	if err != nil {
		var missing *idempotency.ErrMissingKeyField
		if errors.As(err, &missing) && spec.Idempotency.BypassOnMissingKey {
			x.logger.Debug("idempotency bypassed", "missing_field", missing.Field)
			x.bypassed = true
			return nil, nil
		}
		return nil, toolerr.New(spec.Name, "idempotency", toolerr.CodeValidation,
			"cannot derive idempotency key").WithCause(err)
	}
	x.idemKey = key
	x.tc.IdempotencyKey = key
	x.cache = idempotency.NewCache(x.tc.Memory)

	if err := x.lock(ctx); err != nil {
		return nil, err
	}

	if !spec.Idempotency.PersistResult {
		return nil, nil
	}
	cached, err := x.cache.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, nil
	}

	x.logger.Info("using cached result for idempotency", "idempotency_key", key)
	if cached.Usage == nil {
		cached.Usage = &tool.Usage{}
	}
	cached.Usage.IdempotencyReused = true
	cached.Usage.CachedHit = true
	x.usage = cached.Usage
	return cached, nil
}

// lock acquires the per-key scoped lock, waiting out a concurrent holder of
// the same key until the context expires.
func (x *execution) lock(ctx context.Context) error {
	for {
		release, err := x.cache.Lock(ctx, x.idemKey, x.exec.spec)
		if err == nil {
			x.lockHandle = release
			return nil
		}
		if !errors.Is(err, memory.ErrLockHeld) {
			return err
		}
		select {
		case <-ctx.Done():
			return toolerr.New(x.exec.spec.Name, "idempotency", toolerr.CodeTimeout,
				"timed out waiting for idempotency lock").WithCause(ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

func (x *execution) idempotencyEnd() {
	if x.lockHandle != nil {
		x.lockHandle()
		x.lockHandle = nil
	}
}

// invoke runs the operation inside a trace span, wrapped by the circuit
// breaker around the retry policy around the per-attempt timeout.
func (x *execution) invoke(ctx context.Context) (any, error) {
	spec := x.exec.spec

	var finish func(error)
	if x.tc.Tracer != nil {
		var spanID string
		ctx, spanID, finish = x.tc.Tracer.Span(ctx, "tool.execute", map[string]any{
			"tool":   spec.Name,
			"kind":   string(spec.Kind),
			"run_id": x.tc.RunID,
		})
		x.tc.SpanID = spanID
	}

	content, err := x.exec.breaker.Do(ctx, func(ctx context.Context) (any, error) {
		result, attempts, err := x.exec.retry.Do(ctx, spec.Name, x.attempt)
		x.usage.Attempts = attempts
		if attempts > 0 {
			x.usage.Retries = attempts - 1
		}
		return result, err
	})
	if finish != nil {
		finish(err)
	}

	if err != nil && toolerr.IsCircuitOpen(err) {
		x.usage.CircuitOpened = true
	}
	return content, err
}

// attempt is one timeout-bounded invocation of the underlying operation. A
// deadline expiry is classified as a retryable timeout so the retry policy
// can re-run it under a fresh deadline.
func (x *execution) attempt(ctx context.Context) (any, error) {
	spec := x.exec.spec

	timeout := spec.EffectiveTimeout()
	if !x.tc.Deadline.IsZero() {
		if remaining := time.Until(x.tc.Deadline); remaining < timeout {
			timeout = remaining
		}
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	content, err := x.invokeBackend(actx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, toolerr.New(spec.Name, "invoke", toolerr.CodeTimeout,
				fmt.Sprintf("operation exceeded its %s timeout", timeout)).
				WithCause(toolerr.ErrTimeout)
		}
		return nil, err
	}
	return content, nil
}

// invokeBackend dispatches to the invoker with kind-specific logging.
func (x *execution) invokeBackend(ctx context.Context) (any, error) {
	switch x.exec.spec.Kind {
	case tool.KindHTTP:
		x.logger.Debug("starting HTTP tool invocation")
	case tool.KindDB:
		x.logger.Debug("starting database tool invocation")
	}
	return x.invokerCall(ctx)
}

func (x *execution) invokerCall(ctx context.Context) (content any, err error) {
	// The invoker is opaque third-party code; a panic there must become
	// an error result, not escape Execute.
	defer func() {
		if r := recover(); r != nil {
			err = toolerr.New(x.exec.spec.Name, "invoke", toolerr.CodeToolError,
				fmt.Sprintf("operation panicked: %v", r))
		}
	}()
	return x.exec.invoker.Invoke(ctx, x.args)
}

// assemble computes the usage record and wraps the content in a Result.
func (x *execution) assemble(content any) *tool.Result {
	inputBytes := jsonSize(x.args)
	outputBytes := jsonSize(content)

	x.usage.InputBytes = inputBytes
	x.usage.OutputBytes = outputBytes
	x.usage.TokensIn = int(x.exec.tokens(inputBytes, 0))
	x.usage.TokensOut = int(x.exec.tokens(0, outputBytes))
	x.usage.CostUSD = x.exec.cost(inputBytes, outputBytes)

	return &tool.Result{
		Content: content,
		Usage:   x.usage,
	}
}

// idempotencyStore persists the result while the scoped lock is still held.
func (x *execution) idempotencyStore(ctx context.Context, result *tool.Result) {
	spec := x.exec.spec
	if x.cache == nil || x.bypassed || x.idemKey == "" || !spec.Idempotency.PersistResult {
		return
	}
	if err := x.cache.Store(ctx, x.idemKey, result, spec.Idempotency.EffectiveTTL()); err != nil {
		// A cache write failure degrades idempotency, not the call.
		x.logger.Warn("failed to store idempotent result",
			"idempotency_key", x.idemKey, "error", err)
	}
}

// failure converts a pipeline error into the uniform error Result.
func (e *Executor) failure(err error, usage *tool.Usage, elapsedMS int64) *tool.Result {
	return &tool.Result{
		Content: map[string]any{
			"error": err.Error(),
			"code":  toolerr.Code(err),
		},
		Usage:     usage,
		LatencyMS: elapsedMS,
		Warnings:  []string{e.warning(err)},
	}
}

// warning renders the kind-specific human-readable failure message.
func (e *Executor) warning(err error) string {
	switch e.spec.Kind {
	case tool.KindHTTP:
		return fmt.Sprintf("HTTP tool execution failed for %s: %v", e.spec.Name, err)
	case tool.KindDB:
		return fmt.Sprintf("Database tool execution failed for %s: %v", e.spec.Name, err)
	default:
		return fmt.Sprintf("Tool execution failed: %v", err)
	}
}

func (e *Executor) emitMetrics(ctx context.Context, tc *tool.Context, status string, elapsedMS int64) {
	if tc.Metrics == nil {
		return
	}
	tags := map[string]string{"tool": e.spec.Name, "status": status}
	for k, v := range e.spec.MetricTags {
		tags[k] = v
	}
	tc.Metrics.TimingMS(ctx, MetricExecutionTime, elapsedMS, tags)
	tc.Metrics.Incr(ctx, MetricExecutions, 1, tags)
	if status != "success" {
		tc.Metrics.Incr(ctx, MetricFailures, 1, tags)
	}
}

func jsonSize(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}
