package store

import (
	"time"

	"github.com/georgeberry/thresholds/internal/record"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// sampleRun returns a run summary and two records for it.
func sampleRun(id string, started time.Time) (RunSummary, []record.Record) {
	run := RunSummary{
		ID:         id,
		Scenario:   "toy",
		Identifier: "c_1_N_N___2_2_path_0",
		Model:      "integer",
		Graph:      "path",
		Replicate:  1,
		Seed:       42,
		Nodes:      2,
		Edges:      1,
		Seeds:      1,
		Activated:  2,
		Observed:   1,
		Visits:     1,
		Epochs:     1,
		StartedAt:  started,
		Duration:   1500 * time.Microsecond,
	}
	records := []record.Record{
		{RunID: id, Node: 0, Activated: true, Seed: true, Threshold: fptr(1), Degree: 1,
			Covariates: map[string]float64{"constant": 1}},
		{RunID: id, Node: 1, Activated: true, Threshold: fptr(1), After: fptr(1), Degree: 1,
			Observed: iptr(1), ActivationOrder: iptr(1), Visits: 1,
			Covariates: map[string]float64{"constant": 1}},
	}
	return run, records
}

func countID(runs []RunSummary, id string) int {
	n := 0
	for _, r := range runs {
		if r.ID == id {
			n++
		}
	}
	return n
}
