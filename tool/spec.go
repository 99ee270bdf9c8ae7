package tool

import (
	"errors"
	"time"
)

// Kind identifies what a tool ultimately invokes.
type Kind string

const (
	// KindFunction is a tool backed by an in-process function.
	KindFunction Kind = "FUNCTION"

	// KindHTTP is a tool backed by an HTTP endpoint.
	KindHTTP Kind = "HTTP"

	// KindDB is a tool backed by a database operation.
	KindDB Kind = "DB"
)

// DefaultTimeout bounds a single invocation attempt when the spec does not
// set its own timeout.
const DefaultTimeout = 30 * time.Second

// Spec is the immutable declarative description of a tool: its identity,
// parameter schema, and resilience configuration. Specs are created once at
// registration through the builder and never modified afterwards.
type Spec struct {
	// ID is the unique identifier for the tool (e.g. "charge-card-v1").
	ID string `json:"id" yaml:"id"`

	// Version is the semantic version of the tool.
	Version string `json:"version" yaml:"version"`

	// Name is the human-readable tool name.
	Name string `json:"name" yaml:"name"`

	// Description explains what the tool does.
	Description string `json:"description" yaml:"description"`

	// Kind selects the invocation backend.
	Kind Kind `json:"kind" yaml:"kind"`

	// Parameters is the argument schema enforced by the validator.
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// Timeout bounds a single invocation attempt. Zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Retry configures the retry policy.
	Retry RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`

	// CircuitBreaker configures the circuit-breaker policy.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`

	// Idempotency configures duplicate-call detection and result reuse.
	Idempotency IdempotencyConfig `json:"idempotency,omitempty" yaml:"idempotency,omitempty"`

	// Permissions the caller must hold to run the tool.
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`

	// Owner identifies the team or system owning the tool.
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`

	// MetricTags are static tags merged into every metric emitted for
	// this tool.
	MetricTags map[string]string `json:"metric_tags,omitempty" yaml:"metric_tags,omitempty"`

	// HTTP holds endpoint configuration for KindHTTP tools.
	HTTP *HTTPSpec `json:"http,omitempty" yaml:"http,omitempty"`

	// DB holds driver configuration for KindDB tools.
	DB *DBSpec `json:"db,omitempty" yaml:"db,omitempty"`
}

// HTTPSpec configures a KindHTTP tool. The concrete HTTP client performing
// the request is supplied separately as an opaque invoker.
type HTTPSpec struct {
	URL     string            `json:"url" yaml:"url"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// DBSpec configures a KindDB tool. The concrete database client performing
// the operation is supplied separately as an opaque invoker.
type DBSpec struct {
	Driver string `json:"driver" yaml:"driver"`
	Table  string `json:"table,omitempty" yaml:"table,omitempty"`
}

// EffectiveTimeout returns the per-attempt timeout, falling back to
// DefaultTimeout when the spec does not set one.
func (s *Spec) EffectiveTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

// Parameter returns the declared parameter with the given name, or nil.
func (s *Spec) Parameter(name string) *Parameter {
	for i := range s.Parameters {
		if s.Parameters[i].Name == name {
			return &s.Parameters[i]
		}
	}
	return nil
}

// Validate checks that the spec is internally consistent.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return errors.New("tool: spec id is required")
	}
	if s.Name == "" {
		return errors.New("tool: spec name is required")
	}
	switch s.Kind {
	case KindFunction:
	case KindHTTP:
		if s.HTTP == nil || s.HTTP.URL == "" {
			return errors.New("tool: http spec requires a url")
		}
	case KindDB:
		if s.DB == nil || s.DB.Driver == "" {
			return errors.New("tool: db spec requires a driver")
		}
	default:
		return errors.New("tool: unknown spec kind")
	}
	if err := s.Retry.Validate(); err != nil {
		return err
	}
	if err := s.CircuitBreaker.Validate(); err != nil {
		return err
	}
	return s.Idempotency.Validate()
}

// Descriptor is a metadata snapshot of a Spec without the resilience
// configuration, suitable for registry listings.
type Descriptor struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
	Owner       string `json:"owner,omitempty"`
}

// ToDescriptor extracts the metadata snapshot from a Spec.
func ToDescriptor(s *Spec) Descriptor {
	return Descriptor{
		ID:          s.ID,
		Version:     s.Version,
		Name:        s.Name,
		Description: s.Description,
		Kind:        s.Kind,
		Owner:       s.Owner,
	}
}
