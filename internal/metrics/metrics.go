package metrics

import (
	"time"
)

// Run outcomes used as the outcome label.
const (
	OutcomeConverged = "converged"
	OutcomeStalled   = "stalled"
	OutcomePartial   = "partial"
)

// RecordRun records a finished run.
func (r *Registry) RecordRun(model, outcome string, duration time.Duration, visits int, activatedFraction, observedShare float64) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(model, outcome).Inc()
	r.RunDuration.WithLabelValues(model).Observe(duration.Seconds())
	r.RunVisits.WithLabelValues(model).Observe(float64(visits))
	r.ActivatedFraction.WithLabelValues(model).Observe(activatedFraction)
	r.ObservedShare.WithLabelValues(model).Observe(observedShare)
}

// RecordRunError records a run that failed at stage.
func (r *Registry) RecordRunError(stage string) {
	if r == nil {
		return
	}
	r.RunErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordRecordsWritten counts records handed to sinks.
func (r *Registry) RecordRecordsWritten(n int) {
	if r == nil {
		return
	}
	r.RecordsWrittenTotal.Add(float64(n))
}

// WorkerStarted marks a replicate worker busy.
func (r *Registry) WorkerStarted() {
	if r == nil {
		return
	}
	r.WorkersBusy.Inc()
}

// WorkerFinished marks a replicate worker idle.
func (r *Registry) WorkerFinished() {
	if r == nil {
		return
	}
	r.WorkersBusy.Dec()
}
