package tool

import (
	"time"
)

// Context is the per-call bundle of identity, deadline, and injected
// collaborators. It is created per execution through NewContext and
// discarded when the call returns. The zero value is usable; absent
// collaborators disable their pipeline stage.
type Context struct {
	// Identity.
	TenantID  string
	UserID    string
	SessionID string

	// Tracing correlation.
	TraceID      string
	SpanID       string
	ParentSpanID string

	// Execution control.
	Locale   string
	Timezone string
	Deadline time.Time

	// Auth claims (e.g. "permissions", "role") and free-form extras.
	Auth   map[string]any
	Extras map[string]any

	// RunID correlates all attempts of one execution.
	RunID string

	// IdempotencyKey is set by the executor once computed.
	IdempotencyKey string

	// Injected collaborators. Nil disables the corresponding stage.
	Validator Validator
	Security  Security
	Memory    Memory
	Metrics   Metrics
	Tracer    Tracer
	Limiter   Limiter
}

// Claim returns an auth claim by name.
func (c *Context) Claim(name string) (any, bool) {
	if c.Auth == nil {
		return nil, false
	}
	v, ok := c.Auth[name]
	return v, ok
}

// StringClaims returns an auth claim interpreted as a list of strings.
// Both []string and []any of strings are accepted.
func (c *Context) StringClaims(name string) []string {
	v, ok := c.Claim(name)
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vv}
	}
	return nil
}

// ContextBuilder constructs a Context with chained setters.
type ContextBuilder struct {
	ctx Context
}

// NewContext creates a ContextBuilder with empty defaults.
func NewContext() *ContextBuilder {
	return &ContextBuilder{
		ctx: Context{
			Auth:   map[string]any{},
			Extras: map[string]any{},
		},
	}
}

// SetTenantID sets the tenant identifier.
func (b *ContextBuilder) SetTenantID(id string) *ContextBuilder {
	b.ctx.TenantID = id
	return b
}

// SetUserID sets the user identifier.
func (b *ContextBuilder) SetUserID(id string) *ContextBuilder {
	b.ctx.UserID = id
	return b
}

// SetSessionID sets the session identifier.
func (b *ContextBuilder) SetSessionID(id string) *ContextBuilder {
	b.ctx.SessionID = id
	return b
}

// SetTrace sets the trace and parent span identifiers.
func (b *ContextBuilder) SetTrace(traceID, parentSpanID string) *ContextBuilder {
	b.ctx.TraceID = traceID
	b.ctx.ParentSpanID = parentSpanID
	return b
}

// SetLocale sets the locale.
func (b *ContextBuilder) SetLocale(locale string) *ContextBuilder {
	b.ctx.Locale = locale
	return b
}

// SetTimezone sets the timezone.
func (b *ContextBuilder) SetTimezone(tz string) *ContextBuilder {
	b.ctx.Timezone = tz
	return b
}

// SetDeadline sets the absolute call deadline.
func (b *ContextBuilder) SetDeadline(t time.Time) *ContextBuilder {
	b.ctx.Deadline = t
	return b
}

// SetRunID sets the run correlation identifier.
func (b *ContextBuilder) SetRunID(id string) *ContextBuilder {
	b.ctx.RunID = id
	return b
}

// SetClaim sets one auth claim.
func (b *ContextBuilder) SetClaim(name string, value any) *ContextBuilder {
	b.ctx.Auth[name] = value
	return b
}

// SetExtra sets one free-form extra.
func (b *ContextBuilder) SetExtra(name string, value any) *ContextBuilder {
	b.ctx.Extras[name] = value
	return b
}

// SetValidator injects the validator collaborator.
func (b *ContextBuilder) SetValidator(v Validator) *ContextBuilder {
	b.ctx.Validator = v
	return b
}

// SetSecurity injects the security collaborator.
func (b *ContextBuilder) SetSecurity(s Security) *ContextBuilder {
	b.ctx.Security = s
	return b
}

// SetMemory injects the cache store collaborator.
func (b *ContextBuilder) SetMemory(m Memory) *ContextBuilder {
	b.ctx.Memory = m
	return b
}

// SetMetrics injects the metrics sink collaborator.
func (b *ContextBuilder) SetMetrics(m Metrics) *ContextBuilder {
	b.ctx.Metrics = m
	return b
}

// SetTracer injects the tracer collaborator.
func (b *ContextBuilder) SetTracer(t Tracer) *ContextBuilder {
	b.ctx.Tracer = t
	return b
}

// SetLimiter injects the rate limiter collaborator.
func (b *ContextBuilder) SetLimiter(l Limiter) *ContextBuilder {
	b.ctx.Limiter = l
	return b
}

// Build returns the constructed Context. The builder must not be reused
// after Build.
func (b *ContextBuilder) Build() *Context {
	return &b.ctx
}
