// Package metrics provides the tool.Metrics sinks the executor reports into.
// The SDK ships an OpenTelemetry-backed sink for deployments that export
// through an OTel pipeline, a Prometheus-backed sink for scrape-based
// setups, and a no-op sink for tests and callers that opt out.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Noop discards every measurement.
type Noop struct{}

// Incr implements tool.Metrics.
func (Noop) Incr(ctx context.Context, name string, value int64, tags map[string]string) {}

// Observe implements tool.Metrics.
func (Noop) Observe(ctx context.Context, name string, value float64, tags map[string]string) {}

// TimingMS implements tool.Metrics.
func (Noop) TimingMS(ctx context.Context, name string, ms int64, tags map[string]string) {}

// OTel reports measurements through an OpenTelemetry meter. Instruments are
// created lazily per metric name and cached for reuse; instrument creation
// errors drop the measurement rather than failing the caller.
type OTel struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
	timings    map[string]metric.Int64Histogram
}

// NewOTel builds a metrics sink on the given meter.
func NewOTel(meter metric.Meter) *OTel {
	return &OTel{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		timings:    make(map[string]metric.Int64Histogram),
	}
}

// Incr implements tool.Metrics.
func (m *OTel) Incr(ctx context.Context, name string, value int64, tags map[string]string) {
	counter, err := m.counter(name)
	if err != nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(otelAttrs(tags)...))
}

// Observe implements tool.Metrics.
func (m *OTel) Observe(ctx context.Context, name string, value float64, tags map[string]string) {
	hist, err := m.histogram(name)
	if err != nil {
		return
	}
	hist.Record(ctx, value, metric.WithAttributes(otelAttrs(tags)...))
}

// TimingMS implements tool.Metrics.
func (m *OTel) TimingMS(ctx context.Context, name string, ms int64, tags map[string]string) {
	hist, err := m.timing(name)
	if err != nil {
		return
	}
	hist.Record(ctx, ms, metric.WithAttributes(otelAttrs(tags)...))
}

func (m *OTel) counter(name string) (metric.Int64Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c, nil
	}
	c, err := m.meter.Int64Counter(name, metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", name, err)
	}
	m.counters[name] = c
	return c, nil
}

func (m *OTel) histogram(name string) (metric.Float64Histogram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[name]; ok {
		return h, nil
	}
	h, err := m.meter.Float64Histogram(name, metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create histogram %s: %w", name, err)
	}
	m.histograms[name] = h
	return h, nil
}

func (m *OTel) timing(name string) (metric.Int64Histogram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.timings[name]; ok {
		return h, nil
	}
	h, err := m.meter.Int64Histogram(name, metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create timing histogram %s: %w", name, err)
	}
	m.timings[name] = h
	return h, nil
}

func otelAttrs(tags map[string]string) []attribute.KeyValue {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, tags[k]))
	}
	return attrs
}
