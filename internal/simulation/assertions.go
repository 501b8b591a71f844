package simulation

import (
	"slices"
	"testing"

	"github.com/georgeberry/thresholds/internal/record"
)

// AssertAllConverged asserts that every run of the batch ended with all
// nodes active.
func AssertAllConverged(t *testing.T, b *Batch) {
	t.Helper()
	for _, run := range b.Runs {
		if run.Activated != run.Nodes {
			t.Errorf("AssertAllConverged: replicate %d: %d of %d nodes active", run.Replicate, run.Activated, run.Nodes)
		}
	}
}

// AssertNoneStalled asserts that no run of the batch hit the stall limit.
func AssertNoneStalled(t *testing.T, b *Batch) {
	t.Helper()
	for _, run := range b.Runs {
		if run.Stalled {
			t.Errorf("AssertNoneStalled: replicate %d stalled with %d of %d active", run.Replicate, run.Activated, run.Nodes)
		}
	}
}

// AssertActivatedBetween asserts that every run ends with an active count
// within [min, max].
func AssertActivatedBetween(t *testing.T, b *Batch, min, max int) {
	t.Helper()
	for _, run := range b.Runs {
		if run.Activated < min || run.Activated > max {
			t.Errorf("AssertActivatedBetween: replicate %d: %d active, want [%d, %d]", run.Replicate, run.Activated, min, max)
		}
	}
}

// AssertObservedShareBetween asserts that the batch mean share of correctly
// measured activations falls within [min, max].
func AssertObservedShareBetween(t *testing.T, b *Batch, min, max float64) {
	t.Helper()
	if b.MeanObservedShare < min || b.MeanObservedShare > max {
		t.Errorf("AssertObservedShareBetween: mean observed share %.4f not in [%.4f, %.4f]", b.MeanObservedShare, min, max)
	}
}

// AssertRecordsConsistent asserts the per-node invariants of one run's
// records: cascade activations carry orders forming exactly 1..k, seeds and
// inactive nodes carry none, and only cascade activations are classified.
func AssertRecordsConsistent(t *testing.T, records []record.Record) {
	t.Helper()
	var orders []int
	for _, r := range records {
		switch {
		case r.Seed:
			if r.ActivationOrder != nil || r.Observed != nil {
				t.Errorf("AssertRecordsConsistent: seed %d carries an order or classification", r.Node)
			}
		case r.Activated:
			if r.ActivationOrder == nil || r.Observed == nil {
				t.Errorf("AssertRecordsConsistent: node %d active without an order or classification", r.Node)
				continue
			}
			orders = append(orders, *r.ActivationOrder)
		case r.ActivationOrder != nil || r.After != nil || r.Observed != nil:
			t.Errorf("AssertRecordsConsistent: inactive node %d carries activation data", r.Node)
		}
	}
	slices.Sort(orders)
	for i, o := range orders {
		if o != i+1 {
			t.Errorf("AssertRecordsConsistent: activation orders have a gap or duplicate at %d (got %d)", i+1, o)
			return
		}
	}
}
