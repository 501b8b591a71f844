// Package record classifies final node states and turns them into flat
// output rows, one per node per run.
package record

import (
	"maps"
	"slices"

	"github.com/georgeberry/thresholds/internal/cascade"
	"github.com/georgeberry/thresholds/internal/population"
)

// Record is the output row for one node of one run. Pointer fields are nil
// when the value is undefined for the node.
type Record struct {
	RunID            string             `json:"run_id"`
	Node             int64              `json:"node"`
	Activated        bool               `json:"activated"`
	Threshold        *float64           `json:"threshold"`
	Before           *float64           `json:"before_activation_alters"`
	After            *float64           `json:"after_activation_alters"`
	Degree           float64            `json:"degree"`
	Observed         *int               `json:"observed"`
	ActivationOrder  *int               `json:"activation_order"`
	Seed             bool               `json:"seed"`
	CriticalExposure *int               `json:"critical_exposure"`
	Visits           int                `json:"visits"`
	Covariates       map[string]float64 `json:"covariates,omitempty"`
}

// Classify reports whether an external observer seeing only the node's last
// inactive snapshot and its activation snapshot would recover its threshold.
// It returns 1 when the node activated with no active neighbors or when
// exactly one neighbor activated between the two snapshots, 0 otherwise,
// and nil for seeds and nodes that never activated. A node never seen
// inactive counts as having had zero active neighbors.
func Classify(n population.NodeState) *int {
	if !n.Activated || n.Seed || n.After == nil {
		return nil
	}
	before := 0
	if n.Before != nil {
		before = n.Before.Active
	}
	v := 0
	if n.After.Active == 0 || n.After.Active-before == 1 {
		v = 1
	}
	return &v
}

// Emit builds one record per node in index order.
func Emit(runID string, pop *population.Population, model cascade.Model) []Record {
	withThreshold := model.UsesThresholds() && pop.HasThresholds()
	out := make([]Record, pop.Len())
	for i, n := range pop.Nodes() {
		r := Record{
			RunID:      runID,
			Node:       n.ID,
			Activated:  n.Activated,
			Degree:     n.Degree,
			Observed:   Classify(n),
			Seed:       n.Seed,
			Visits:     n.Visits,
			Covariates: n.Covariates,
		}
		if withThreshold {
			r.Threshold = ptr(n.Threshold)
		}
		if n.Before != nil {
			r.Before = ptr(n.Before.Value)
		}
		if n.After != nil {
			r.After = ptr(n.After.Value)
		}
		if n.ActivationOrder > 0 {
			r.ActivationOrder = ptr(n.ActivationOrder)
		}
		if !model.UsesThresholds() && n.CriticalExposure > 0 {
			r.CriticalExposure = ptr(n.CriticalExposure)
		}
		out[i] = r
	}
	return out
}

// Summary counts the outcome of one run.
type Summary struct {
	Nodes      int `json:"nodes"`
	Activated  int `json:"activated"`
	Seeds      int `json:"seeds"`
	Observed   int `json:"observed"`
	Unobserved int `json:"unobserved"`
}

// ObservedShare returns the share of classified activations that were
// correctly measured, or 0 when none were classified.
func (s Summary) ObservedShare() float64 {
	total := s.Observed + s.Unobserved
	if total == 0 {
		return 0
	}
	return float64(s.Observed) / float64(total)
}

// Summarize tallies records.
func Summarize(records []Record) Summary {
	s := Summary{Nodes: len(records)}
	for _, r := range records {
		if r.Activated {
			s.Activated++
		}
		if r.Seed {
			s.Seeds++
		}
		if r.Observed != nil {
			if *r.Observed == 1 {
				s.Observed++
			} else {
				s.Unobserved++
			}
		}
	}
	return s
}

// CovariateNames returns the sorted union of covariate names in records.
func CovariateNames(records []Record) []string {
	names := make(map[string]struct{})
	for _, r := range records {
		for name := range r.Covariates {
			names[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(names))
}

func ptr[T any](v T) *T { return &v }
