// Package metrics provides Prometheus metrics for the scopelog dispatcher and
// filter registry.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scopelog"

// LoggerMetrics counts what the dispatcher does with each call. It satisfies
// logger.MetricsObserver.
type LoggerMetrics struct {
	Emitted     *prometheus.CounterVec
	Filtered    *prometheus.CounterVec
	WriteErrors prometheus.Counter
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	Rules       prometheus.Gauge
	registry    *prometheus.Registry
}

// NewLoggerMetrics creates the collectors and registers them with registry.
func NewLoggerMetrics(registry *prometheus.Registry) (*LoggerMetrics, error) {
	m := &LoggerMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register logger metrics: %w", err)
	}
	return m, nil
}

func (m *LoggerMetrics) initMetrics() {
	m.Emitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_emitted_total",
		Help:      "Records written to the sink, by level",
	}, []string{"level"})

	m.Filtered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_filtered_total",
		Help:      "Calls suppressed by the level, location or depth filters, by level",
	}, []string{"level"})

	m.WriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_write_errors_total",
		Help:      "Failed sink writes",
	})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decision_cache_hits_total",
		Help:      "Call-site decisions served from the cache",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decision_cache_misses_total",
		Help:      "Call-site decisions computed by matching the rules",
	})

	m.Rules = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rules",
		Help:      "Registered location rules",
	})
}

// RecordEmitted counts a written record.
func (m *LoggerMetrics) RecordEmitted(level string) {
	m.Emitted.WithLabelValues(level).Inc()
}

// RecordFiltered counts a suppressed call.
func (m *LoggerMetrics) RecordFiltered(level string) {
	m.Filtered.WithLabelValues(level).Inc()
}

// RecordWriteError counts a failed sink write.
func (m *LoggerMetrics) RecordWriteError() {
	m.WriteErrors.Inc()
}

// RecordCacheHit counts a cached decision.
func (m *LoggerMetrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss counts a computed decision.
func (m *LoggerMetrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// SetRuleCount sets the number of registered rules.
func (m *LoggerMetrics) SetRuleCount(n int) {
	m.Rules.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *LoggerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Emitted.Describe(ch)
	m.Filtered.Describe(ch)
	ch <- m.WriteErrors.Desc()
	ch <- m.CacheHits.Desc()
	ch <- m.CacheMisses.Desc()
	ch <- m.Rules.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *LoggerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Emitted.Collect(ch)
	m.Filtered.Collect(ch)
	ch <- m.WriteErrors
	ch <- m.CacheHits
	ch <- m.CacheMisses
	ch <- m.Rules
}
