package tool

import "time"

// SpecBuilder constructs an immutable Spec with chained setters. Build
// validates the accumulated configuration and returns the finished value;
// the builder must not be reused after Build.
type SpecBuilder struct {
	spec Spec
}

// NewSpec creates a SpecBuilder with defaults: version "1.0.0" and
// KindFunction.
func NewSpec() *SpecBuilder {
	return &SpecBuilder{
		spec: Spec{
			Version: "1.0.0",
			Kind:    KindFunction,
		},
	}
}

// SetID sets the tool identifier.
func (b *SpecBuilder) SetID(id string) *SpecBuilder {
	b.spec.ID = id
	return b
}

// SetVersion sets the tool version.
func (b *SpecBuilder) SetVersion(version string) *SpecBuilder {
	b.spec.Version = version
	return b
}

// SetName sets the tool name.
func (b *SpecBuilder) SetName(name string) *SpecBuilder {
	b.spec.Name = name
	return b
}

// SetDescription sets the tool description.
func (b *SpecBuilder) SetDescription(desc string) *SpecBuilder {
	b.spec.Description = desc
	return b
}

// SetKind sets the invocation backend.
func (b *SpecBuilder) SetKind(kind Kind) *SpecBuilder {
	b.spec.Kind = kind
	return b
}

// AddParameter appends one parameter declaration.
func (b *SpecBuilder) AddParameter(p Parameter) *SpecBuilder {
	b.spec.Parameters = append(b.spec.Parameters, p)
	return b
}

// SetTimeout sets the per-attempt timeout.
func (b *SpecBuilder) SetTimeout(d time.Duration) *SpecBuilder {
	b.spec.Timeout = d
	return b
}

// SetRetry sets the retry configuration.
func (b *SpecBuilder) SetRetry(cfg RetryConfig) *SpecBuilder {
	b.spec.Retry = cfg
	return b
}

// SetCircuitBreaker sets the circuit-breaker configuration.
func (b *SpecBuilder) SetCircuitBreaker(cfg CircuitBreakerConfig) *SpecBuilder {
	b.spec.CircuitBreaker = cfg
	return b
}

// SetIdempotency sets the idempotency configuration.
func (b *SpecBuilder) SetIdempotency(cfg IdempotencyConfig) *SpecBuilder {
	b.spec.Idempotency = cfg
	return b
}

// SetPermissions sets the permissions required to run the tool.
func (b *SpecBuilder) SetPermissions(perms ...string) *SpecBuilder {
	b.spec.Permissions = perms
	return b
}

// SetOwner sets the owning team or system.
func (b *SpecBuilder) SetOwner(owner string) *SpecBuilder {
	b.spec.Owner = owner
	return b
}

// SetMetricTags sets the static metric tags.
func (b *SpecBuilder) SetMetricTags(tags map[string]string) *SpecBuilder {
	b.spec.MetricTags = tags
	return b
}

// SetHTTP sets the endpoint configuration and switches the kind to KindHTTP.
func (b *SpecBuilder) SetHTTP(cfg HTTPSpec) *SpecBuilder {
	b.spec.Kind = KindHTTP
	b.spec.HTTP = &cfg
	return b
}

// SetDB sets the driver configuration and switches the kind to KindDB.
func (b *SpecBuilder) SetDB(cfg DBSpec) *SpecBuilder {
	b.spec.Kind = KindDB
	b.spec.DB = &cfg
	return b
}

// Build validates and returns the finished Spec.
func (b *SpecBuilder) Build() (*Spec, error) {
	spec := b.spec
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}
