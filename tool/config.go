package tool

import (
	"errors"
	"time"
)

// RetryStrategy selects a retry policy implementation.
type RetryStrategy string

const (
	// RetryNone performs a single attempt.
	RetryNone RetryStrategy = "none"

	// RetryFixed waits a constant delay between attempts.
	RetryFixed RetryStrategy = "fixed"

	// RetryExponential backs off exponentially between attempts.
	RetryExponential RetryStrategy = "exponential"
)

// RetryConfig configures the retry policy for a tool.
type RetryConfig struct {
	// Strategy selects the policy. Empty means RetryExponential.
	Strategy RetryStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// MaxAttempts is the total attempt budget, including the first call.
	// Zero means 3.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`

	// BaseDelay is the delay before the first retry. Zero means 200ms.
	BaseDelay time.Duration `json:"base_delay,omitempty" yaml:"base_delay,omitempty"`

	// MaxDelay caps the delay between attempts. Zero means 2s.
	MaxDelay time.Duration `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`

	// Multiplier is the exponential growth factor. Zero means 2.0.
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`

	// Jitter is the symmetric random adjustment applied to each delay,
	// expressed as a fraction of the delay (0.0 to 1.0).
	Jitter float64 `json:"jitter,omitempty" yaml:"jitter,omitempty"`
}

// Defaults for retry configuration.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 200 * time.Millisecond
	DefaultMaxDelay    = 2 * time.Second
	DefaultMultiplier  = 2.0
)

// Attempts returns the effective attempt budget.
func (c RetryConfig) Attempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Validate checks the retry configuration.
func (c RetryConfig) Validate() error {
	switch c.Strategy {
	case "", RetryNone, RetryFixed, RetryExponential:
	default:
		return errors.New("tool: unknown retry strategy")
	}
	if c.MaxAttempts < 0 {
		return errors.New("tool: retry max_attempts must not be negative")
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return errors.New("tool: retry jitter must be between 0 and 1")
	}
	return nil
}

// BreakerStrategy selects a circuit-breaker policy implementation.
type BreakerStrategy string

const (
	// BreakerStandard uses fixed failure threshold and recovery timeout.
	BreakerStandard BreakerStrategy = "standard"

	// BreakerAdaptive slides the threshold with the observed error rate.
	BreakerAdaptive BreakerStrategy = "adaptive"

	// BreakerNone disables circuit breaking for the tool.
	BreakerNone BreakerStrategy = "none"
)

// CircuitBreakerConfig configures the circuit-breaker policy for a tool.
type CircuitBreakerConfig struct {
	// Strategy selects the policy. Empty means BreakerStandard when
	// Enabled, BreakerNone otherwise.
	Strategy BreakerStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// Enabled turns the breaker on. The zero Spec leaves it off.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Zero means 5.
	FailureThreshold int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`

	// RecoveryTimeout is how long the circuit stays OPEN before allowing
	// trial calls. Zero means 30s.
	RecoveryTimeout time.Duration `json:"recovery_timeout,omitempty" yaml:"recovery_timeout,omitempty"`

	// HalfOpenMaxCalls bounds trial calls in HALF_OPEN. Zero means 1.
	HalfOpenMaxCalls int `json:"half_open_max_calls,omitempty" yaml:"half_open_max_calls,omitempty"`

	// WindowSize bounds the adaptive outcome window. Zero means 100.
	WindowSize int `json:"window_size,omitempty" yaml:"window_size,omitempty"`

	// MaxThreshold caps the adaptive threshold. Zero means 20.
	MaxThreshold int `json:"max_threshold,omitempty" yaml:"max_threshold,omitempty"`

	// ErrorRateTarget is the error rate above which the adaptive policy
	// tightens its threshold. Zero means 0.5.
	ErrorRateTarget float64 `json:"error_rate_target,omitempty" yaml:"error_rate_target,omitempty"`
}

// Defaults for circuit-breaker configuration.
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 30 * time.Second
	DefaultHalfOpenMaxCalls = 1
	DefaultWindowSize       = 100
	DefaultMaxThreshold     = 20
)

// DefaultErrorRateTarget is the adaptive policy's default error-rate target.
const DefaultErrorRateTarget = 0.5

// Threshold returns the effective failure threshold.
func (c CircuitBreakerConfig) Threshold() int {
	if c.FailureThreshold > 0 {
		return c.FailureThreshold
	}
	return DefaultFailureThreshold
}

// Recovery returns the effective recovery timeout.
func (c CircuitBreakerConfig) Recovery() time.Duration {
	if c.RecoveryTimeout > 0 {
		return c.RecoveryTimeout
	}
	return DefaultRecoveryTimeout
}

// HalfOpenCalls returns the effective half-open trial call budget.
func (c CircuitBreakerConfig) HalfOpenCalls() int {
	if c.HalfOpenMaxCalls > 0 {
		return c.HalfOpenMaxCalls
	}
	return DefaultHalfOpenMaxCalls
}

// Validate checks the circuit-breaker configuration.
func (c CircuitBreakerConfig) Validate() error {
	switch c.Strategy {
	case "", BreakerStandard, BreakerAdaptive, BreakerNone:
	default:
		return errors.New("tool: unknown circuit breaker strategy")
	}
	if c.ErrorRateTarget < 0 || c.ErrorRateTarget > 1 {
		return errors.New("tool: circuit breaker error_rate_target must be between 0 and 1")
	}
	if c.MaxThreshold > 0 && c.FailureThreshold > c.MaxThreshold {
		return errors.New("tool: circuit breaker failure_threshold exceeds max_threshold")
	}
	return nil
}

// KeyStrategy selects an idempotency key generator.
type KeyStrategy string

const (
	// KeyDefault hashes spec identity, caller identity, and all arguments.
	KeyDefault KeyStrategy = "default"

	// KeyFields hashes spec identity and the configured key fields only.
	KeyFields KeyStrategy = "fields"

	// KeyHash is the configurable-digest variant of KeyDefault.
	KeyHash KeyStrategy = "hash"
)

// IdempotencyConfig configures duplicate-call detection for a tool.
type IdempotencyConfig struct {
	// Enabled turns idempotency handling on.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Strategy selects the key generator. Empty means KeyDefault, or
	// KeyFields when KeyFields is implied by a non-empty KeyFields list.
	Strategy KeyStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// KeyFields restricts the key to a subset of arguments. Empty means
	// all arguments participate.
	KeyFields []string `json:"key_fields,omitempty" yaml:"key_fields,omitempty"`

	// TTL bounds how long a stored result is reused. Zero means 1h.
	TTL time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`

	// PersistResult stores the result for reuse by later identical calls.
	PersistResult bool `json:"persist_result,omitempty" yaml:"persist_result,omitempty"`

	// BypassOnMissingKey skips idempotency entirely (no read, no write)
	// when any configured key field is absent from the arguments.
	BypassOnMissingKey bool `json:"bypass_on_missing_key,omitempty" yaml:"bypass_on_missing_key,omitempty"`

	// HashAlgorithm selects the digest for KeyHash ("sha256" or "sha512").
	HashAlgorithm string `json:"hash_algorithm,omitempty" yaml:"hash_algorithm,omitempty"`

	// IncludeUser and IncludeSession control caller identity inclusion
	// for KeyHash. Both default to true.
	IncludeUser    *bool `json:"include_user,omitempty" yaml:"include_user,omitempty"`
	IncludeSession *bool `json:"include_session,omitempty" yaml:"include_session,omitempty"`
}

// DefaultIdempotencyTTL bounds cached results when the spec sets no TTL.
const DefaultIdempotencyTTL = time.Hour

// EffectiveTTL returns the cache TTL, falling back to DefaultIdempotencyTTL.
func (c IdempotencyConfig) EffectiveTTL() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultIdempotencyTTL
}

// Validate checks the idempotency configuration.
func (c IdempotencyConfig) Validate() error {
	switch c.Strategy {
	case "", KeyDefault, KeyFields, KeyHash:
	default:
		return errors.New("tool: unknown idempotency key strategy")
	}
	switch c.HashAlgorithm {
	case "", "sha256", "sha512":
	default:
		return errors.New("tool: unsupported idempotency hash algorithm")
	}
	if c.BypassOnMissingKey && len(c.KeyFields) == 0 {
		return errors.New("tool: bypass_on_missing_key requires key_fields")
	}
	return nil
}
