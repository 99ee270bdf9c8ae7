package metrics

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus reports measurements into a Prometheus registry. Collectors are
// created lazily per metric name with the label names of the first
// measurement; later measurements for the same name must carry the same tag
// keys or they are dropped, since Prometheus fixes label names per
// collector.
type Prometheus struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheus builds a metrics sink registering collectors with reg. A nil
// reg uses the default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Incr implements tool.Metrics.
func (m *Prometheus) Incr(ctx context.Context, name string, value int64, tags map[string]string) {
	vec := m.counterVec(name, tags)
	if vec == nil {
		return
	}
	counter, err := vec.GetMetricWith(prometheus.Labels(tags))
	if err != nil {
		return
	}
	counter.Add(float64(value))
}

// Observe implements tool.Metrics.
func (m *Prometheus) Observe(ctx context.Context, name string, value float64, tags map[string]string) {
	vec := m.histogramVec(name, tags, prometheus.DefBuckets)
	if vec == nil {
		return
	}
	hist, err := vec.GetMetricWith(prometheus.Labels(tags))
	if err != nil {
		return
	}
	hist.Observe(value)
}

// TimingMS implements tool.Metrics.
func (m *Prometheus) TimingMS(ctx context.Context, name string, ms int64, tags map[string]string) {
	buckets := prometheus.ExponentialBuckets(1, 2, 16) // 1ms to ~32s
	vec := m.histogramVec(name+"_ms", tags, buckets)
	if vec == nil {
		return
	}
	hist, err := vec.GetMetricWith(prometheus.Labels(tags))
	if err != nil {
		return
	}
	hist.Observe(float64(ms))
}

func (m *Prometheus) counterVec(name string, tags map[string]string) *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	if vec, ok := m.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: promName(name)},
		labelNames(tags),
	)
	if err := m.registerer.Register(vec); err != nil {
		return nil
	}
	m.counters[name] = vec
	return vec
}

func (m *Prometheus) histogramVec(name string, tags map[string]string, buckets []float64) *prometheus.HistogramVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	if vec, ok := m.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: promName(name), Buckets: buckets},
		labelNames(tags),
	)
	if err := m.registerer.Register(vec); err != nil {
		return nil
	}
	m.histograms[name] = vec
	return vec
}

// promName converts dotted metric names to the underscore form Prometheus
// expects.
func promName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
