// Package observability exposes scopelog's Prometheus metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/scopelog/internal/logger"
	"github.com/tphakala/scopelog/internal/observability/metrics"
)

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	Logger   *metrics.LoggerMetrics
}

// NewMetrics creates the registry and its collectors. Go runtime and process
// collectors are included when withRuntime is set.
func NewMetrics(withRuntime bool) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	loggerMetrics, err := metrics.NewLoggerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger metrics: %w", err)
	}

	if withRuntime {
		if err := registry.Register(collectors.NewGoCollector()); err != nil {
			return nil, fmt.Errorf("failed to register Go collector: %w", err)
		}
		if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, fmt.Errorf("failed to register process collector: %w", err)
		}
	}

	return &Metrics{registry: registry, Logger: loggerMetrics}, nil
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      handlerLog{},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// handlerLog forwards promhttp errors to the global dispatcher.
type handlerLog struct{}

func (handlerLog) Println(v ...any) {
	msg := strings.TrimSuffix(fmt.Sprintln(v...), "\n")
	logger.Error(context.Background(), "metrics handler: "+msg)
}
