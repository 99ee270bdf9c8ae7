package tool

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration fields in spec files are written as strings like "30s" or
// "500ms". The unmarshalers below parse them with time.ParseDuration; bare
// integers are accepted as nanoseconds for compatibility with the JSON form.

type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil || node.Value == "" {
		*d = 0
		return nil
	}
	var ns int64
	if err := node.Decode(&ns); err == nil {
		*d = yamlDuration(ns)
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("tool: invalid duration %q: %w", node.Value, err)
	}
	*d = yamlDuration(parsed)
	return nil
}

func (d yamlDuration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// specYAML mirrors Spec with YAML-friendly duration fields.
type specYAML struct {
	ID             string               `yaml:"id"`
	Version        string               `yaml:"version"`
	Name           string               `yaml:"name"`
	Description    string               `yaml:"description,omitempty"`
	Kind           Kind                 `yaml:"kind"`
	Parameters     []Parameter          `yaml:"parameters,omitempty"`
	Timeout        yamlDuration         `yaml:"timeout,omitempty"`
	Retry          RetryConfig          `yaml:"retry,omitempty"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker,omitempty"`
	Idempotency    IdempotencyConfig    `yaml:"idempotency,omitempty"`
	Permissions    []string             `yaml:"permissions,omitempty"`
	Owner          string               `yaml:"owner,omitempty"`
	MetricTags     map[string]string    `yaml:"metric_tags,omitempty"`
	HTTP           *HTTPSpec            `yaml:"http,omitempty"`
	DB             *DBSpec              `yaml:"db,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler for Spec.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	var aux specYAML
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*s = Spec{
		ID:             aux.ID,
		Version:        aux.Version,
		Name:           aux.Name,
		Description:    aux.Description,
		Kind:           aux.Kind,
		Parameters:     aux.Parameters,
		Timeout:        time.Duration(aux.Timeout),
		Retry:          aux.Retry,
		CircuitBreaker: aux.CircuitBreaker,
		Idempotency:    aux.Idempotency,
		Permissions:    aux.Permissions,
		Owner:          aux.Owner,
		MetricTags:     aux.MetricTags,
		HTTP:           aux.HTTP,
		DB:             aux.DB,
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler for Spec.
func (s Spec) MarshalYAML() (any, error) {
	return specYAML{
		ID:             s.ID,
		Version:        s.Version,
		Name:           s.Name,
		Description:    s.Description,
		Kind:           s.Kind,
		Parameters:     s.Parameters,
		Timeout:        yamlDuration(s.Timeout),
		Retry:          s.Retry,
		CircuitBreaker: s.CircuitBreaker,
		Idempotency:    s.Idempotency,
		Permissions:    s.Permissions,
		Owner:          s.Owner,
		MetricTags:     s.MetricTags,
		HTTP:           s.HTTP,
		DB:             s.DB,
	}, nil
}

// retryYAML mirrors RetryConfig with YAML-friendly duration fields.
type retryYAML struct {
	Strategy    RetryStrategy `yaml:"strategy,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	BaseDelay   yamlDuration  `yaml:"base_delay,omitempty"`
	MaxDelay    yamlDuration  `yaml:"max_delay,omitempty"`
	Multiplier  float64       `yaml:"multiplier,omitempty"`
	Jitter      float64       `yaml:"jitter,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler for RetryConfig.
func (c *RetryConfig) UnmarshalYAML(node *yaml.Node) error {
	var aux retryYAML
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*c = RetryConfig{
		Strategy:    aux.Strategy,
		MaxAttempts: aux.MaxAttempts,
		BaseDelay:   time.Duration(aux.BaseDelay),
		MaxDelay:    time.Duration(aux.MaxDelay),
		Multiplier:  aux.Multiplier,
		Jitter:      aux.Jitter,
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler for RetryConfig.
func (c RetryConfig) MarshalYAML() (any, error) {
	return retryYAML{
		Strategy:    c.Strategy,
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   yamlDuration(c.BaseDelay),
		MaxDelay:    yamlDuration(c.MaxDelay),
		Multiplier:  c.Multiplier,
		Jitter:      c.Jitter,
	}, nil
}

// breakerYAML mirrors CircuitBreakerConfig with YAML-friendly durations.
type breakerYAML struct {
	Strategy         BreakerStrategy `yaml:"strategy,omitempty"`
	Enabled          bool            `yaml:"enabled,omitempty"`
	FailureThreshold int             `yaml:"failure_threshold,omitempty"`
	RecoveryTimeout  yamlDuration    `yaml:"recovery_timeout,omitempty"`
	HalfOpenMaxCalls int             `yaml:"half_open_max_calls,omitempty"`
	WindowSize       int             `yaml:"window_size,omitempty"`
	MaxThreshold     int             `yaml:"max_threshold,omitempty"`
	ErrorRateTarget  float64         `yaml:"error_rate_target,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler for CircuitBreakerConfig.
func (c *CircuitBreakerConfig) UnmarshalYAML(node *yaml.Node) error {
	var aux breakerYAML
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*c = CircuitBreakerConfig{
		Strategy:         aux.Strategy,
		Enabled:          aux.Enabled,
		FailureThreshold: aux.FailureThreshold,
		RecoveryTimeout:  time.Duration(aux.RecoveryTimeout),
		HalfOpenMaxCalls: aux.HalfOpenMaxCalls,
		WindowSize:       aux.WindowSize,
		MaxThreshold:     aux.MaxThreshold,
		ErrorRateTarget:  aux.ErrorRateTarget,
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler for CircuitBreakerConfig.
func (c CircuitBreakerConfig) MarshalYAML() (any, error) {
	return breakerYAML{
		Strategy:         c.Strategy,
		Enabled:          c.Enabled,
		FailureThreshold: c.FailureThreshold,
		RecoveryTimeout:  yamlDuration(c.RecoveryTimeout),
		HalfOpenMaxCalls: c.HalfOpenMaxCalls,
		WindowSize:       c.WindowSize,
		MaxThreshold:     c.MaxThreshold,
		ErrorRateTarget:  c.ErrorRateTarget,
	}, nil
}

// idempotencyYAML mirrors IdempotencyConfig with YAML-friendly durations.
type idempotencyYAML struct {
	Enabled            bool         `yaml:"enabled,omitempty"`
	Strategy           KeyStrategy  `yaml:"strategy,omitempty"`
	KeyFields          []string     `yaml:"key_fields,omitempty"`
	TTL                yamlDuration `yaml:"ttl,omitempty"`
	PersistResult      bool         `yaml:"persist_result,omitempty"`
	BypassOnMissingKey bool         `yaml:"bypass_on_missing_key,omitempty"`
	HashAlgorithm      string       `yaml:"hash_algorithm,omitempty"`
	IncludeUser        *bool        `yaml:"include_user,omitempty"`
	IncludeSession     *bool        `yaml:"include_session,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler for IdempotencyConfig.
func (c *IdempotencyConfig) UnmarshalYAML(node *yaml.Node) error {
	var aux idempotencyYAML
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*c = IdempotencyConfig{
		Enabled:            aux.Enabled,
		Strategy:           aux.Strategy,
		KeyFields:          aux.KeyFields,
		TTL:                time.Duration(aux.TTL),
		PersistResult:      aux.PersistResult,
		BypassOnMissingKey: aux.BypassOnMissingKey,
		HashAlgorithm:      aux.HashAlgorithm,
		IncludeUser:        aux.IncludeUser,
		IncludeSession:     aux.IncludeSession,
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler for IdempotencyConfig.
func (c IdempotencyConfig) MarshalYAML() (any, error) {
	return idempotencyYAML{
		Enabled:            c.Enabled,
		Strategy:           c.Strategy,
		KeyFields:          c.KeyFields,
		TTL:                yamlDuration(c.TTL),
		PersistResult:      c.PersistResult,
		BypassOnMissingKey: c.BypassOnMissingKey,
		HashAlgorithm:      c.HashAlgorithm,
		IncludeUser:        c.IncludeUser,
		IncludeSession:     c.IncludeSession,
	}, nil
}
