// Package health provides reusable health checks for tool-execution
// deployments: backing stores, queue transports, and tool endpoints.
package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/toolweave-ai/sdk/tool"
)

// Health status constants represent the operational state of a component.
const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy = "healthy"

	// StatusDegraded indicates the component is operational but impaired.
	StatusDegraded = "degraded"

	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy = "unhealthy"
)

// Status is the health state of a component, with optional diagnostics.
type Status struct {
	// Status is the current state (healthy, degraded, or unhealthy).
	Status string `json:"status"`

	// Message is a human-readable description of the state.
	Message string `json:"message,omitempty"`

	// Details contains additional diagnostic context.
	Details map[string]any `json:"details,omitempty"`
}

// IsHealthy returns true if the status is StatusHealthy.
func (s Status) IsHealthy() bool {
	return s.Status == StatusHealthy
}

// IsDegraded returns true if the status is StatusDegraded.
func (s Status) IsDegraded() bool {
	return s.Status == StatusDegraded
}

// IsUnhealthy returns true if the status is StatusUnhealthy.
func (s Status) IsUnhealthy() bool {
	return s.Status == StatusUnhealthy
}

// Healthy creates a healthy status with an optional message.
func Healthy(message string) Status {
	return Status{Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded status with a message and optional details.
func Degraded(message string, details map[string]any) Status {
	return Status{Status: StatusDegraded, Message: message, Details: details}
}

// Unhealthy creates an unhealthy status with a message and optional details.
func Unhealthy(message string, details map[string]any) Status {
	return Status{Status: StatusUnhealthy, Message: message, Details: details}
}

// MemoryCheck probes a tool.Memory backend with a write-read-delete cycle.
//
// Example:
//
//	status := health.MemoryCheck(ctx, store)
//	if status.IsUnhealthy() {
//	    log.Fatal("idempotency store unreachable")
//	}
func MemoryCheck(ctx context.Context, m tool.Memory) Status {
	if m == nil {
		return Unhealthy("memory backend is not configured", nil)
	}

	key := "health:probe:" + uuid.NewString()
	value := []byte("ok")

	if err := m.Set(ctx, key, value, 30*time.Second); err != nil {
		return Unhealthy("memory write failed", map[string]any{"error": err.Error()})
	}
	got, _, err := m.Get(ctx, key)
	if err != nil {
		return Unhealthy("memory read failed", map[string]any{"error": err.Error()})
	}
	if string(got) != string(value) {
		return Unhealthy("memory read returned wrong value", map[string]any{
			"key": key,
		})
	}
	if err := m.Delete(ctx, key); err != nil {
		// The probe key expires on its own; a failed delete is not fatal.
		return Degraded("memory delete failed", map[string]any{"error": err.Error()})
	}
	return Healthy("memory backend is reachable")
}

// NetworkCheck verifies TCP connectivity to a host and port.
func NetworkCheck(ctx context.Context, host string, port int) Status {
	if host == "" {
		return Unhealthy("host cannot be empty", nil)
	}
	if port <= 0 || port > 65535 {
		return Unhealthy(fmt.Sprintf("invalid port number: %d", port), map[string]any{"port": port})
	}

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Unhealthy(fmt.Sprintf("failed to connect to %s", address), map[string]any{
			"host":  host,
			"port":  port,
			"error": err.Error(),
		})
	}
	conn.Close()

	return Healthy(fmt.Sprintf("successfully connected to %s", address))
}

// EndpointCheck verifies TCP connectivity to the backend of an HTTP tool
// spec. Specs of other kinds are reported healthy, since they have no
// network endpoint to probe.
func EndpointCheck(ctx context.Context, spec *tool.Spec) Status {
	if spec == nil {
		return Unhealthy("spec cannot be nil", nil)
	}
	if spec.Kind != tool.KindHTTP {
		return Healthy(fmt.Sprintf("tool %s has no network endpoint", spec.Name))
	}
	if spec.HTTP == nil || spec.HTTP.URL == "" {
		return Unhealthy(fmt.Sprintf("tool %s has no endpoint url", spec.Name), nil)
	}

	u, err := url.Parse(spec.HTTP.URL)
	if err != nil {
		return Unhealthy(fmt.Sprintf("tool %s has an invalid endpoint url", spec.Name), map[string]any{
			"url":   spec.HTTP.URL,
			"error": err.Error(),
		})
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return Unhealthy(fmt.Sprintf("tool %s has an invalid endpoint port", spec.Name), map[string]any{
			"url": spec.HTTP.URL,
		})
	}

	return NetworkCheck(ctx, u.Hostname(), portNum)
}

// Combine aggregates multiple health checks into a single status:
// any unhealthy check makes the result unhealthy; otherwise any degraded
// check makes it degraded; otherwise the result is healthy.
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return Healthy("no checks provided")
	}

	var unhealthy, degraded []string
	for _, check := range checks {
		msg := check.Message
		if msg == "" {
			msg = "unnamed check"
		}
		switch check.Status {
		case StatusUnhealthy:
			unhealthy = append(unhealthy, msg)
		case StatusDegraded:
			degraded = append(degraded, msg)
		}
	}

	switch {
	case len(unhealthy) > 0:
		return Unhealthy(fmt.Sprintf("%d of %d checks unhealthy", len(unhealthy), len(checks)), map[string]any{
			"unhealthy": unhealthy,
			"degraded":  degraded,
		})
	case len(degraded) > 0:
		return Degraded(fmt.Sprintf("%d of %d checks degraded", len(degraded), len(checks)), map[string]any{
			"degraded": degraded,
		})
	default:
		return Healthy(fmt.Sprintf("all %d checks healthy", len(checks)))
	}
}
