package exec

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolweave-ai/sdk/breaker"
	"github.com/toolweave-ai/sdk/memory"
	"github.com/toolweave-ai/sdk/security"
	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
	"github.com/toolweave-ai/sdk/validate"
)

// recordingMetrics captures counter increments for assertions.
type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
	tags     map[string]map[string]string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		counters: make(map[string]int64),
		tags:     make(map[string]map[string]string),
	}
}

func (m *recordingMetrics) Incr(ctx context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
	m.tags[name] = tags
}

func (m *recordingMetrics) Observe(ctx context.Context, name string, value float64, tags map[string]string) {
}

func (m *recordingMetrics) TimingMS(ctx context.Context, name string, ms int64, tags map[string]string) {
}

func (m *recordingMetrics) count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// recordingLimiter counts scoped acquisitions and releases.
type recordingLimiter struct {
	mu       sync.Mutex
	acquired []string
	released int
}

func (l *recordingLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired = append(l.acquired, key)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, nil
}

func paymentSpec(mutate func(*tool.Spec)) *tool.Spec {
	spec := &tool.Spec{
		ID:      "payment-v1",
		Version: "1.0.0",
		Name:    "payment",
		Kind:    tool.KindFunction,
		Parameters: []tool.Parameter{
			{Name: "order_id", Type: tool.TypeString, Required: true},
			{Name: "note", Type: tool.TypeString},
		},
		Retry: tool.RetryConfig{Strategy: tool.RetryFixed, MaxAttempts: 3, BaseDelay: time.Millisecond},
	}
	if mutate != nil {
		mutate(spec)
	}
	return spec
}

func fullContext(store tool.Memory) *tool.Context {
	builder := tool.NewContext().
		SetUserID("alice").
		SetSessionID("s1").
		SetValidator(validate.NewBasic()).
		SetSecurity(security.Basic{})
	if store != nil {
		builder.SetMemory(store)
	}
	return builder.Build()
}

func TestExecuteSuccess(t *testing.T) {
	spec := paymentSpec(nil)
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]any{"status": "paid", "order_id": args["order_id"]}, nil
	}), Options{})
	require.NoError(t, err)

	result := exec.Execute(context.Background(), fullContext(nil), map[string]any{"order_id": "o-42"})
	require.NotNil(t, result)
	assert.False(t, result.IsError())

	content := result.Content.(map[string]any)
	assert.Equal(t, "paid", content["status"])

	require.NotNil(t, result.Usage)
	assert.Equal(t, 1, result.Usage.Attempts)
	assert.Equal(t, 0, result.Usage.Retries)
	assert.False(t, result.Usage.IdempotencyReused)
	assert.Greater(t, result.Usage.InputBytes, 0)
	assert.Greater(t, result.Usage.OutputBytes, 0)
	assert.Greater(t, result.Usage.TokensOut, 0)
}

func TestExecuteValidationFailure(t *testing.T) {
	spec := paymentSpec(nil)
	var invoked atomic.Int32
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		invoked.Add(1)
		return nil, nil
	}), Options{})
	require.NoError(t, err)

	result := exec.Execute(context.Background(), fullContext(nil), map[string]any{"bogus": 1})
	require.True(t, result.IsError())
	assert.Equal(t, toolerr.CodeValidation, result.ErrorCode())
	assert.Contains(t, result.Warnings[0], "Tool execution failed")
	assert.Equal(t, int32(0), invoked.Load())
}

func TestExecuteUnauthorized(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) {
		s.Permissions = []string{"payments:write"}
	})
	var invoked atomic.Int32
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		invoked.Add(1)
		return nil, nil
	}), Options{})
	require.NoError(t, err)

	result := exec.Execute(context.Background(), fullContext(nil), map[string]any{"order_id": "o-42"})
	require.True(t, result.IsError())
	assert.Equal(t, toolerr.CodeForbidden, result.ErrorCode())
	assert.Equal(t, int32(0), invoked.Load())
}

func TestExecuteEgressDenied(t *testing.T) {
	spec := paymentSpec(nil)
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return "ok", nil
	}), Options{})
	require.NoError(t, err)

	egress, err := security.NewCEL(security.Basic{}, `!has(args.note) || args.note != "blocked"`)
	require.NoError(t, err)

	tc := tool.NewContext().
		SetUserID("alice").
		SetSecurity(egress).
		Build()
	result := exec.Execute(context.Background(), tc,
		map[string]any{"order_id": "o-42", "note": "blocked"})
	require.True(t, result.IsError())
	assert.Equal(t, toolerr.CodeEgressDenied, result.ErrorCode())
}

func TestExecuteRetriesRetryableErrors(t *testing.T) {
	spec := paymentSpec(nil)
	var calls atomic.Int32
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		if calls.Add(1) < 3 {
			return nil, toolerr.New("payment", "invoke", toolerr.CodeUnavailable, "gateway flapping")
		}
		return "ok", nil
	}), Options{})
	require.NoError(t, err)

	result := exec.Execute(context.Background(), fullContext(nil), map[string]any{"order_id": "o-42"})
	assert.False(t, result.IsError())
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, result.Usage.Attempts)
	assert.Equal(t, 2, result.Usage.Retries)
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	spec := paymentSpec(nil)
	var calls atomic.Int32
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		calls.Add(1)
		return nil, toolerr.New("payment", "invoke", toolerr.CodeToolError, "card declined")
	}), Options{})
	require.NoError(t, err)

	result := exec.Execute(context.Background(), fullContext(nil), map[string]any{"order_id": "o-42"})
	require.True(t, result.IsError())
	assert.Equal(t, toolerr.CodeToolError, result.ErrorCode())
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteTimeoutIsRetried(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) {
		s.Timeout = 20 * time.Millisecond
	})
	var calls atomic.Int32
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return "ok", nil
	}), Options{})
	require.NoError(t, err)

	result := exec.Execute(context.Background(), fullContext(nil), map[string]any{"order_id": "o-42"})
	assert.False(t, result.IsError())
	assert.Equal(t, int32(2), calls.Load())
}

func TestExecuteCircuitBreakerFailsFast(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) {
		s.Retry = tool.RetryConfig{Strategy: tool.RetryNone}
		s.CircuitBreaker = tool.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			RecoveryTimeout:  time.Hour,
		}
	})
	var calls atomic.Int32
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		calls.Add(1)
		return nil, toolerr.New("payment", "invoke", toolerr.CodeToolError, "down")
	}), Options{})
	require.NoError(t, err)

	tc := fullContext(nil)
	args := map[string]any{"order_id": "o-42"}

	exec.Execute(context.Background(), tc, args)
	exec.Execute(context.Background(), tc, args)
	require.Equal(t, int32(2), calls.Load())

	// The third call is rejected without invoking the operation.
	result := exec.Execute(context.Background(), tc, args)
	require.True(t, result.IsError())
	assert.Equal(t, toolerr.CodeCircuitOpen, result.ErrorCode())
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, result.Usage.CircuitOpened)
}

func TestExecutorsSharingRegistryShareBreakerState(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) {
		s.Retry = tool.RetryConfig{Strategy: tool.RetryNone}
		s.CircuitBreaker = tool.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			RecoveryTimeout:  time.Hour,
		}
	})
	registry := breaker.NewRegistry()
	failing, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return nil, toolerr.New("payment", "invoke", toolerr.CodeToolError, "down")
	}), Options{Breakers: registry})
	require.NoError(t, err)

	var invoked atomic.Int32
	healthy, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		invoked.Add(1)
		return "ok", nil
	}), Options{Breakers: registry})
	require.NoError(t, err)

	tc := fullContext(nil)
	args := map[string]any{"order_id": "o-42"}

	failing.Execute(context.Background(), tc, args)
	result := healthy.Execute(context.Background(), tc, args)
	require.True(t, result.IsError())
	assert.Equal(t, toolerr.CodeCircuitOpen, result.ErrorCode())
	assert.Equal(t, int32(0), invoked.Load())
}

func TestExecuteIdempotencyReuse(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) {
		s.Idempotency = tool.IdempotencyConfig{
			Enabled:       true,
			Strategy:      tool.KeyFields,
			KeyFields:     []string{"order_id"},
			PersistResult: true,
		}
	})
	var calls atomic.Int32
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		calls.Add(1)
		return map[string]any{"status": "paid"}, nil
	}), Options{})
	require.NoError(t, err)

	store := memory.NewInProcess()

	first := exec.Execute(context.Background(), fullContext(store),
		map[string]any{"order_id": "o-42", "note": "first"})
	assert.False(t, first.IsError())
	assert.False(t, first.Usage.IdempotencyReused)

	// Same order_id, different non-key argument: cached result is reused
	// and the operation is not re-invoked.
	second := exec.Execute(context.Background(), fullContext(store),
		map[string]any{"order_id": "o-42", "note": "second"})
	assert.False(t, second.IsError())
	assert.True(t, second.Usage.IdempotencyReused)
	assert.True(t, second.Usage.CachedHit)
	assert.Equal(t, int32(1), calls.Load())

	// A different order_id executes normally.
	third := exec.Execute(context.Background(), fullContext(store),
		map[string]any{"order_id": "o-43"})
	assert.False(t, third.Usage.IdempotencyReused)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExecuteIdempotencyBypassOnMissingKey(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) {
		s.Parameters = []tool.Parameter{
			{Name: "order_id", Type: tool.TypeString},
			{Name: "amount", Type: tool.TypeNumber},
		}
		s.Idempotency = tool.IdempotencyConfig{
			Enabled:            true,
			Strategy:           tool.KeyFields,
			KeyFields:          []string{"order_id"},
			PersistResult:      true,
			BypassOnMissingKey: true,
		}
	})
	var calls atomic.Int32
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		calls.Add(1)
		return "ok", nil
	}), Options{})
	require.NoError(t, err)

	store := memory.NewInProcess()
	args := map[string]any{"amount": 10.0}

	// Without the key field every call executes and nothing is cached.
	exec.Execute(context.Background(), fullContext(store), args)
	exec.Execute(context.Background(), fullContext(store), args)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExecuteIdempotencyMissingKeyWithoutBypassFails(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) {
		s.Parameters = nil
		s.Idempotency = tool.IdempotencyConfig{
			Enabled:       true,
			Strategy:      tool.KeyFields,
			KeyFields:     []string{"order_id"},
			PersistResult: true,
		}
	})
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return "ok", nil
	}), Options{})
	require.NoError(t, err)

	tc := tool.NewContext().SetMemory(memory.NewInProcess()).Build()
	result := exec.Execute(context.Background(), tc, map[string]any{})
	require.True(t, result.IsError())
	assert.Equal(t, toolerr.CodeValidation, result.ErrorCode())
}

func TestExecuteConcurrentSameKeyRunsOnce(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) {
		s.Parameters = nil
		s.Idempotency = tool.IdempotencyConfig{
			Enabled:       true,
			Strategy:      tool.KeyFields,
			KeyFields:     []string{"order_id"},
			PersistResult: true,
		}
	})
	var calls atomic.Int32
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "ok", nil
	}), Options{})
	require.NoError(t, err)

	store := memory.NewInProcess()
	args := map[string]any{"order_id": "o-42"}

	var wg sync.WaitGroup
	results := make([]*tool.Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = exec.Execute(context.Background(), fullContext(store), args)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "scoped lock must serialize the key")
	reused := 0
	for _, r := range results {
		require.NotNil(t, r)
		assert.False(t, r.IsError())
		if r.Usage.IdempotencyReused {
			reused++
		}
	}
	assert.Equal(t, 3, reused)
}

func TestExecuteLimiterScopedRelease(t *testing.T) {
	spec := paymentSpec(nil)
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return nil, toolerr.New("payment", "invoke", toolerr.CodeToolError, "boom")
	}), Options{})
	require.NoError(t, err)

	limiter := &recordingLimiter{}
	tc := tool.NewContext().SetLimiter(limiter).Build()
	exec.Execute(context.Background(), tc, map[string]any{"order_id": "o-42"})

	// Release must happen even on the failure path.
	assert.Equal(t, []string{"payment"}, limiter.acquired)
	assert.Equal(t, 1, limiter.released)
}

func TestExecuteEmitsMetrics(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) {
		s.MetricTags = map[string]string{"team": "payments"}
	})
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return "ok", nil
	}), Options{})
	require.NoError(t, err)

	sink := newRecordingMetrics()
	tc := tool.NewContext().SetMetrics(sink).Build()
	exec.Execute(context.Background(), tc, map[string]any{"order_id": "o-42"})

	assert.Equal(t, int64(1), sink.count(MetricExecutions))
	assert.Equal(t, int64(0), sink.count(MetricFailures))
	assert.Equal(t, "payments", sink.tags[MetricExecutions]["team"])
	assert.Equal(t, "success", sink.tags[MetricExecutions]["status"])

	failing, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("boom")
	}), Options{})
	require.NoError(t, err)
	failing.Execute(context.Background(), tc, map[string]any{"order_id": "o-42"})
	assert.Equal(t, int64(1), sink.count(MetricFailures))
}

func TestExecuteRecoversInvokerPanic(t *testing.T) {
	spec := paymentSpec(nil)
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		panic("unexpected state")
	}), Options{})
	require.NoError(t, err)

	result := exec.Execute(context.Background(), fullContext(nil), map[string]any{"order_id": "o-42"})
	require.True(t, result.IsError())
	assert.Contains(t, result.ErrorMessage(), "panicked")
}

func TestExecuteNilContextAndArgs(t *testing.T) {
	spec := paymentSpec(func(s *tool.Spec) { s.Parameters = nil })
	exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return "ok", nil
	}), Options{})
	require.NoError(t, err)

	result := exec.Execute(context.Background(), nil, nil)
	require.NotNil(t, result)
	assert.False(t, result.IsError())
}

func TestKindSpecificWarnings(t *testing.T) {
	tests := []struct {
		kind tool.Kind
		want string
	}{
		{tool.KindFunction, "Tool execution failed"},
		{tool.KindHTTP, "HTTP tool execution failed for payment"},
		{tool.KindDB, "Database tool execution failed for payment"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			spec := paymentSpec(func(s *tool.Spec) {
				s.Kind = tt.kind
				s.Parameters = nil
				switch tt.kind {
				case tool.KindHTTP:
					s.HTTP = &tool.HTTPSpec{URL: "https://example.com", Method: "POST"}
				case tool.KindDB:
					s.DB = &tool.DBSpec{Driver: "sqlite", Table: "payments"}
				}
			})
			exec, err := New(spec, tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
				return nil, errors.New("backend broke")
			}), Options{})
			require.NoError(t, err)

			result := exec.Execute(context.Background(), nil, nil)
			require.True(t, result.IsError())
			require.NotEmpty(t, result.Warnings)
			assert.Contains(t, result.Warnings[0], tt.want)
		})
	}
}
