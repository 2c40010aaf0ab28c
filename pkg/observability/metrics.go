package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsClient is the metrics-emission contract used across the core.
type MetricsClient interface {
	IncrementCounter(name string, value float64)
	IncrementCounterWithLabels(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
}

// prometheusClient lazily registers one vector per metric name, keyed by the
// label set's key names, mirroring the shape of counters the adapter runtime
// and executor emit (request totals, durations, queue depth).
type prometheusClient struct {
	mu         sync.Mutex
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewMetricsClient returns a MetricsClient backed by a private prometheus
// registry (tests and multiple components can each own one without
// colliding on the global default registerer).
func NewMetricsClient() MetricsClient {
	return &prometheusClient{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

func (c *prometheusClient) IncrementCounter(name string, value float64) {
	c.IncrementCounterWithLabels(name, value, nil)
}

func (c *prometheusClient) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, labelNames(labels))
		c.registry.MustRegister(vec)
		c.counters[name] = vec
	}
	vec.With(labels).Add(value)
}

func (c *prometheusClient) RecordGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name}, labelNames(labels))
		c.registry.MustRegister(vec)
		c.gauges[name] = vec
	}
	vec.With(labels).Set(value)
}

func (c *prometheusClient) RecordHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name}, labelNames(labels))
		c.registry.MustRegister(vec)
		c.histograms[name] = vec
	}
	vec.With(labels).Observe(value)
}

// noopMetrics discards everything; the default for tests.
type noopMetrics struct{}

// NewNoopMetricsClient returns a MetricsClient that records nothing.
func NewNoopMetricsClient() MetricsClient { return noopMetrics{} }

func (noopMetrics) IncrementCounter(string, float64)                             {}
func (noopMetrics) IncrementCounterWithLabels(string, float64, map[string]string) {}
func (noopMetrics) RecordGauge(string, float64, map[string]string)               {}
func (noopMetrics) RecordHistogram(string, float64, map[string]string)           {}
