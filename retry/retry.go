// Package retry provides the retry policies wrapped around tool
// invocations. A policy re-invokes the operation only for errors the
// toolerr classification deems retryable; the first non-retryable error is
// returned immediately, and the last error is returned once the attempt
// budget is exhausted. Backoff sleeps respect context cancellation.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
)

// Operation is one invocation attempt of the underlying tool operation.
type Operation func(ctx context.Context) (any, error)

// Policy decides whether and how a failed operation is re-invoked.
// Implementations report the number of attempts actually performed so the
// executor can account for them in the usage record.
type Policy interface {
	// Do runs op under the policy and returns its result, the total
	// number of attempts performed, and the final error if all attempts
	// failed.
	Do(ctx context.Context, toolName string, op Operation) (any, int, error)
}

// None performs exactly one attempt.
type None struct{}

// Do implements Policy.
func (None) Do(ctx context.Context, toolName string, op Operation) (any, int, error) {
	result, err := op(ctx)
	return result, 1, err
}

// Fixed retries with a constant delay between attempts, optionally adjusted
// by a symmetric jitter fraction.
type Fixed struct {
	// MaxAttempts is the total attempt budget including the first call.
	MaxAttempts int

	// Delay is the constant wait between attempts.
	Delay time.Duration

	// Jitter is the symmetric random adjustment as a fraction of Delay
	// (0.0 to 1.0).
	Jitter float64
}

// Do implements Policy.
func (p Fixed) Do(ctx context.Context, toolName string, op Operation) (any, int, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = tool.DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, attempt + 1, nil
		}
		lastErr = err

		if !toolerr.Retryable(err) || attempt == attempts-1 {
			return nil, attempt + 1, err
		}
		if err := sleep(ctx, jittered(p.Delay, p.Jitter)); err != nil {
			return nil, attempt + 1, err
		}
	}
	return nil, attempts, lastErr
}

// ExponentialBackoff retries with exponentially growing delays:
// min(base * multiplier^attempt, max), adjusted by a symmetric jitter
// fraction. Attempt numbering is 0-based.
type ExponentialBackoff struct {
	// MaxAttempts is the total attempt budget including the first call.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier is the growth factor, typically 2.0.
	Multiplier float64

	// Jitter is the symmetric random adjustment as a fraction of the
	// computed delay (0.0 to 1.0).
	Jitter float64
}

// Delay returns the backoff delay for a 0-based attempt number, before
// jitter.
func (p ExponentialBackoff) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = tool.DefaultBaseDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = tool.DefaultMaxDelay
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = tool.DefaultMultiplier
	}

	delay := float64(base)
	for i := 0; i < attempt; i++ {
		delay *= multiplier
		if delay >= float64(max) {
			return max
		}
	}
	if delay > float64(max) {
		return max
	}
	return time.Duration(delay)
}

// Do implements Policy.
func (p ExponentialBackoff) Do(ctx context.Context, toolName string, op Operation) (any, int, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = tool.DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, attempt + 1, nil
		}
		lastErr = err

		if !toolerr.Retryable(err) || attempt == attempts-1 {
			return nil, attempt + 1, err
		}
		if err := sleep(ctx, jittered(p.Delay(attempt), p.Jitter)); err != nil {
			return nil, attempt + 1, err
		}
	}
	return nil, attempts, lastErr
}

// DecideFunc is the decision hook for the Custom policy. It receives the
// 0-based number of the attempt that just failed and the error it produced,
// and returns the delay before the next attempt. Returning retry=false stops
// the policy; the last error is then returned to the caller.
type DecideFunc func(attempt int, lastErr error) (delay time.Duration, retry bool)

// customAttemptCap is the absolute safety bound on Custom policy attempts,
// independent of what the decide hook reports.
const customAttemptCap = 10

// Custom delegates retry and backoff decisions to an injected function while
// enforcing an absolute cap on attempts to prevent unbounded loops.
type Custom struct {
	Decide DecideFunc
}

// Do implements Policy.
func (p Custom) Do(ctx context.Context, toolName string, op Operation) (any, int, error) {
	var lastErr error
	for attempt := 0; attempt < customAttemptCap; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, attempt + 1, nil
		}
		lastErr = err

		if p.Decide == nil {
			return nil, attempt + 1, err
		}
		delay, again := p.Decide(attempt, err)
		if !again {
			return nil, attempt + 1, err
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, attempt + 1, err
		}
	}
	return nil, customAttemptCap, toolerr.New(toolName, "retry", toolerr.CodeToolError,
		"custom retry policy hit the attempt safety cap").WithCause(lastErr)
}

// FromConfig selects the policy implied by a retry configuration.
func FromConfig(cfg tool.RetryConfig) Policy {
	switch cfg.Strategy {
	case tool.RetryNone:
		return None{}
	case tool.RetryFixed:
		delay := cfg.BaseDelay
		if delay <= 0 {
			delay = tool.DefaultBaseDelay
		}
		return Fixed{
			MaxAttempts: cfg.Attempts(),
			Delay:       delay,
			Jitter:      cfg.Jitter,
		}
	default:
		return ExponentialBackoff{
			MaxAttempts: cfg.Attempts(),
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			Multiplier:  cfg.Multiplier,
			Jitter:      cfg.Jitter,
		}
	}
}

// jittered applies a symmetric random adjustment of fraction*d to d.
func jittered(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	span := float64(d) * fraction
	adjusted := float64(d) + (rand.Float64()*2-1)*span
	if adjusted < 0 {
		return 0
	}
	return time.Duration(adjusted)
}

// sleep waits for d or until the context is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
