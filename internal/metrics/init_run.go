package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fractionBuckets = []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1}

func (r *Registry) initRunMetrics() {
	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "thresholds_runs_total",
			Help: "Total number of finished simulation runs",
		},
		[]string{"model", "outcome"}, // converged, stalled, partial
	)

	r.RunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thresholds_run_duration_seconds",
			Help:    "Wall time of a single run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"model"},
	)

	r.RunVisits = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thresholds_run_visits",
			Help:    "Node visits performed by a single run",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
		[]string{"model"},
	)

	r.ActivatedFraction = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thresholds_activated_fraction",
			Help:    "Share of nodes active at the end of a run",
			Buckets: fractionBuckets,
		},
		[]string{"model"},
	)

	r.ObservedShare = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thresholds_observed_share",
			Help:    "Share of activations whose threshold was correctly measured",
			Buckets: fractionBuckets,
		},
		[]string{"model"},
	)

	r.RunErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "thresholds_run_errors_total",
			Help: "Total number of failed runs by stage",
		},
		[]string{"stage"}, // graph, assign, run, sink
	)
}

func (r *Registry) initBatchMetrics() {
	r.WorkersBusy = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "thresholds_workers_busy",
			Help: "Number of replicate workers currently running",
		},
	)

	r.RecordsWrittenTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "thresholds_records_written_total",
			Help: "Total number of node records handed to sinks",
		},
	)
}
