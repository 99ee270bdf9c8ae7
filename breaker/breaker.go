// Package breaker provides circuit breakers for tool invocations. A breaker
// is a named state machine shared by all executions of a tool: repeated
// failures open the circuit, open circuits fail fast without invoking the
// tool, and after a recovery timeout a limited number of probe calls decide
// whether the circuit closes again.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
)

// State is the lifecycle state of a circuit breaker.
type State string

const (
	// StateClosed allows calls through; failures are counted.
	StateClosed State = "CLOSED"

	// StateOpen rejects calls without invoking the tool.
	StateOpen State = "OPEN"

	// StateHalfOpen allows a bounded number of probe calls.
	StateHalfOpen State = "HALF_OPEN"
)

// Operation is the call guarded by a breaker.
type Operation func(ctx context.Context) (any, error)

// Breaker guards an operation against repeated downstream failures.
type Breaker interface {
	// Do runs op if the circuit permits it. When the circuit is open it
	// returns a CIRCUIT_OPEN error without invoking op.
	Do(ctx context.Context, op Operation) (any, error)

	// State reports the current circuit state.
	State() State
}

// openErr builds the fail-fast error reported while a circuit is open.
func openErr(name string) error {
	return toolerr.New(name, "invoke", toolerr.CodeCircuitOpen,
		"circuit breaker is open").WithCause(toolerr.ErrCircuitOpen)
}

// Standard is the classic three-state breaker: a consecutive-failure counter
// opens the circuit at a fixed threshold, and a recovery timeout later a
// bounded number of half-open probes decide whether it closes.
type Standard struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMaxCalls int

	mu            sync.Mutex
	state         State
	failures      int
	halfOpenCalls int
	openedAt      time.Time
	now           func() time.Time
}

// NewStandard builds a standard breaker for the named tool. Zero config
// fields fall back to the documented defaults.
func NewStandard(name string, cfg tool.CircuitBreakerConfig) *Standard {
	return &Standard{
		name:             name,
		failureThreshold: cfg.Threshold(),
		recoveryTimeout:  cfg.Recovery(),
		halfOpenMaxCalls: cfg.HalfOpenCalls(),
		state:            StateClosed,
		now:              time.Now,
	}
}

// State implements Breaker.
func (b *Standard) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do implements Breaker.
func (b *Standard) Do(ctx context.Context, op Operation) (any, error) {
	if err := b.before(); err != nil {
		return nil, err
	}
	result, err := op(ctx)
	b.after(err)
	return result, err
}

// before admits or rejects the call and performs the OPEN to HALF_OPEN
// transition once the recovery timeout has elapsed.
func (b *Standard) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.recoveryTimeout {
			return openErr(b.name)
		}
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		fallthrough
	case StateHalfOpen:
		if b.halfOpenCalls >= b.halfOpenMaxCalls {
			return openErr(b.name)
		}
		b.halfOpenCalls++
	}
	return nil
}

func (b *Standard) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		// A successful half-open probe closes the circuit; success in
		// the closed state resets the consecutive failure count.
		b.state = StateClosed
		b.failures = 0
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.trip()
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trip()
		}
	}
}

func (b *Standard) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.halfOpenCalls = 0
}

// Adaptive keeps a bounded sliding window of recent call outcomes and trips
// when the observed error rate pushes the effective failure threshold down
// from its maximum toward the configured base. Recovery follows the same
// open/half-open cycle as the standard breaker, using the configured
// recovery timeout.
type Adaptive struct {
	name             string
	baseThreshold    int
	maxThreshold     int
	windowSize       int
	errorRateTarget  float64
	recoveryTimeout  time.Duration
	halfOpenMaxCalls int

	mu            sync.Mutex
	state         State
	window        []bool // true marks a failure
	failures      int    // consecutive failures
	halfOpenCalls int
	openedAt      time.Time
	now           func() time.Time
}

// NewAdaptive builds an adaptive breaker for the named tool.
func NewAdaptive(name string, cfg tool.CircuitBreakerConfig) *Adaptive {
	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = tool.DefaultWindowSize
	}
	maxThreshold := cfg.MaxThreshold
	if maxThreshold <= 0 {
		maxThreshold = tool.DefaultMaxThreshold
	}
	target := cfg.ErrorRateTarget
	if target <= 0 {
		target = tool.DefaultErrorRateTarget
	}
	return &Adaptive{
		name:             name,
		baseThreshold:    cfg.Threshold(),
		maxThreshold:     maxThreshold,
		windowSize:       windowSize,
		errorRateTarget:  target,
		recoveryTimeout:  cfg.Recovery(),
		halfOpenMaxCalls: cfg.HalfOpenCalls(),
		state:            StateClosed,
		now:              time.Now,
	}
}

// State implements Breaker.
func (b *Adaptive) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do implements Breaker.
func (b *Adaptive) Do(ctx context.Context, op Operation) (any, error) {
	if err := b.before(); err != nil {
		return nil, err
	}
	result, err := op(ctx)
	b.after(err)
	return result, err
}

func (b *Adaptive) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.recoveryTimeout {
			return openErr(b.name)
		}
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		fallthrough
	case StateHalfOpen:
		if b.halfOpenCalls >= b.halfOpenMaxCalls {
			return openErr(b.name)
		}
		b.halfOpenCalls++
	}
	return nil
}

func (b *Adaptive) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(err != nil)

	if err == nil {
		b.state = StateClosed
		b.failures = 0
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.trip()
	case StateClosed:
		b.failures++
		if b.failures >= b.effectiveThreshold() {
			b.trip()
		}
	}
}

func (b *Adaptive) record(failed bool) {
	b.window = append(b.window, failed)
	if len(b.window) > b.windowSize {
		b.window = b.window[len(b.window)-b.windowSize:]
	}
}

// effectiveThreshold interpolates between the maximum threshold at a zero
// error rate and the base threshold once the window error rate reaches the
// configured target.
func (b *Adaptive) effectiveThreshold() int {
	if len(b.window) == 0 {
		return b.maxThreshold
	}
	failed := 0
	for _, f := range b.window {
		if f {
			failed++
		}
	}
	rate := float64(failed) / float64(len(b.window))
	if rate >= b.errorRateTarget {
		return b.baseThreshold
	}
	scale := rate / b.errorRateTarget
	threshold := float64(b.maxThreshold) - scale*float64(b.maxThreshold-b.baseThreshold)
	if threshold < float64(b.baseThreshold) {
		return b.baseThreshold
	}
	return int(threshold)
}

func (b *Adaptive) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.halfOpenCalls = 0
}

// Noop passes every call through and never opens.
type Noop struct{}

// Do implements Breaker.
func (Noop) Do(ctx context.Context, op Operation) (any, error) { return op(ctx) }

// State implements Breaker.
func (Noop) State() State { return StateClosed }

// New builds the breaker implied by a circuit breaker configuration.
func New(name string, cfg tool.CircuitBreakerConfig) Breaker {
	if !cfg.Enabled || cfg.Strategy == tool.BreakerNone {
		return Noop{}
	}
	if cfg.Strategy == tool.BreakerAdaptive {
		return NewAdaptive(name, cfg)
	}
	return NewStandard(name, cfg)
}

// Registry hands out one shared breaker per tool name so that concurrent
// executions of the same tool observe the same circuit state.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]Breaker
}

// NewRegistry returns an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]Breaker)}
}

// For returns the breaker registered for name, creating it from cfg on first
// use. The configuration of the first caller wins for a given name.
func (r *Registry) For(name string, cfg tool.CircuitBreakerConfig) Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, cfg)
	r.breakers[name] = b
	return b
}

// Reset removes the breaker registered for name, if any.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, name)
}
