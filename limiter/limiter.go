// Package limiter provides the tool.Limiter implementations the executor
// uses to throttle tool invocations. The token-bucket limiter keeps one
// bucket per scope key (typically "tool" or "tool:user"), so independent
// scopes never contend with each other.
package limiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/toolweave-ai/sdk/toolerr"
)

// Noop admits every call immediately.
type Noop struct{}

// Acquire implements tool.Limiter.
func (Noop) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// TokenBucket is a per-key token-bucket limiter. Acquire blocks until a
// token is available or the context is cancelled; the release function is a
// no-op because token buckets replenish on their own clock.
type TokenBucket struct {
	// RatePerSec is the sustained admission rate per key.
	ratePerSec float64

	// Burst is the bucket capacity per key.
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTokenBucket builds a limiter admitting ratePerSec calls per second per
// key with the given burst capacity.
func NewTokenBucket(ratePerSec float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		ratePerSec: ratePerSec,
		burst:      burst,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Acquire implements tool.Limiter. It waits for a token in the key's bucket,
// converting a context expiry during the wait into a RATE_LIMITED error.
func (l *TokenBucket) Acquire(ctx context.Context, key string) (func(), error) {
	if err := l.forKey(key).Wait(ctx); err != nil {
		return nil, toolerr.New(key, "acquire", toolerr.CodeRateLimited,
			"rate limit wait aborted").WithCause(err)
	}
	return func() {}, nil
}

func (l *TokenBucket) forKey(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(l.ratePerSec), l.burst)
	l.limiters[key] = limiter
	return limiter
}

// Concurrency bounds the number of in-flight calls per key with a semaphore.
// Acquire blocks until a slot frees up or the context is cancelled; the
// release function returns the slot and must be called exactly once.
type Concurrency struct {
	limit int

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewConcurrency builds a limiter admitting at most limit concurrent calls
// per key.
func NewConcurrency(limit int) *Concurrency {
	if limit < 1 {
		limit = 1
	}
	return &Concurrency{
		limit: limit,
		slots: make(map[string]chan struct{}),
	}
}

// Acquire implements tool.Limiter.
func (l *Concurrency) Acquire(ctx context.Context, key string) (func(), error) {
	slots := l.forKey(key)
	select {
	case slots <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-slots })
		}, nil
	case <-ctx.Done():
		return nil, toolerr.New(key, "acquire", toolerr.CodeRateLimited,
			"concurrency limit wait aborted").WithCause(ctx.Err())
	}
}

func (l *Concurrency) forKey(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slots, ok := l.slots[key]; ok {
		return slots
	}
	slots := make(chan struct{}, l.limit)
	l.slots[key] = slots
	return slots
}
