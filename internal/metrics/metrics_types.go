// Package metrics exposes Prometheus metrics for simulation batches.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application.
// Record methods are no-ops on a nil Registry.
type Registry struct {
	// Run Metrics
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	RunVisits         *prometheus.HistogramVec
	ActivatedFraction *prometheus.HistogramVec
	ObservedShare     *prometheus.HistogramVec
	RunErrorsTotal    *prometheus.CounterVec

	// Batch Metrics
	WorkersBusy         prometheus.Gauge
	RecordsWrittenTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initRunMetrics()
	r.initBatchMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
