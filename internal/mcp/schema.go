package mcp

import (
	"github.com/georgeberry/thresholds/internal/equation"
	"github.com/georgeberry/thresholds/internal/record"
	"github.com/georgeberry/thresholds/internal/store"
)

// SimulateInput defines the input for the thresholds_simulate tool.
type SimulateInput struct {
	Model          string            `json:"model" jsonschema:"Activation model: integer, fractional, push or pull"`
	Graph          string            `json:"graph,omitempty" jsonschema:"Graph generator: watts-strogatz (default), powerlaw-cluster, barabasi-albert, erdos-renyi, cycle, star, complete or path"`
	Nodes          int               `json:"nodes,omitempty" jsonschema:"Number of nodes (default 200)"`
	MeanDegree     int               `json:"mean_degree,omitempty" jsonschema:"Target mean degree for generators that take one (default 12)"`
	GraphProb      *float64          `json:"graph_prob,omitempty" jsonschema:"Rewiring or triad formation probability (default 0.1)"`
	Equation       equation.Equation `json:"equation,omitempty" jsonschema:"Threshold equation keyed by variable name. Overrides threshold"`
	Threshold      *float64          `json:"threshold,omitempty" jsonschema:"Constant threshold for every node when no equation is given (default 1 for integer and 0.2 for fractional)"`
	ActivationProb *float64          `json:"activation_prob,omitempty" jsonschema:"Per-trial success probability for push and pull (default 0.2)"`
	SeedFraction   float64           `json:"seed_fraction,omitempty" jsonschema:"Share of nodes active before the first step"`
	Seeds          []int64           `json:"seeds,omitempty" jsonschema:"Node IDs active before the first step"`
	Replicates     int               `json:"replicates,omitempty" jsonschema:"Number of independent runs (default 1, max 20)"`
	Seed           uint64            `json:"seed,omitempty" jsonschema:"Base random seed (default 42)"`
	IncludeRecords bool              `json:"include_records,omitempty" jsonschema:"Return per-node records of the first replicate"`
}

// SimulateOutput defines the output for the thresholds_simulate tool.
type SimulateOutput struct {
	Identifier        string             `json:"identifier" jsonschema:"Label shared by every run of the batch"`
	Model             string             `json:"model" jsonschema:"Activation model used"`
	Runs              []store.RunSummary `json:"runs" jsonschema:"One summary per replicate"`
	MeanActivated     float64            `json:"mean_activated" jsonschema:"Mean number of active nodes at the end of a run"`
	MeanObservedShare float64            `json:"mean_observed_share" jsonschema:"Mean share of activations whose threshold was correctly measured"`
	SDObservedShare   float64            `json:"sd_observed_share" jsonschema:"Standard deviation of the observed share across replicates"`
	Stalled           int                `json:"stalled" jsonschema:"Runs that stopped with inactive nodes left"`
	Records           []record.Record    `json:"records,omitempty" jsonschema:"Per-node records of the first replicate"`
	Message           string             `json:"message" jsonschema:"Human-readable result message"`
}

// RunsInput defines the input for the thresholds_runs tool.
type RunsInput struct {
	RunID          string `json:"run_id,omitempty" jsonschema:"Show a single run by ID"`
	Model          string `json:"model,omitempty" jsonschema:"Only list runs of this model"`
	Identifier     string `json:"identifier,omitempty" jsonschema:"Only list runs with this identifier"`
	Limit          int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to list (default 20)"`
	IncludeRecords bool   `json:"include_records,omitempty" jsonschema:"Return per-node records when run_id is set"`
}

// RunsOutput defines the output for the thresholds_runs tool.
type RunsOutput struct {
	Runs    []store.RunSummary `json:"runs" jsonschema:"Runs, newest first"`
	Records []record.Record    `json:"records,omitempty" jsonschema:"Per-node records of the requested run"`
	Count   int                `json:"count" jsonschema:"Number of runs returned"`
}

// BackupInput defines the input for the thresholds_backup tool.
type BackupInput struct {
	Path       string `json:"path,omitempty" jsonschema:"Archive file name or path inside the backup directory (default: timestamped name)"`
	Model      string `json:"model,omitempty" jsonschema:"Only archive runs of this model"`
	Identifier string `json:"identifier,omitempty" jsonschema:"Only archive runs with this identifier"`
	Keep       int    `json:"keep,omitempty" jsonschema:"After writing, keep only this many newest archives in the backup directory"`
}

// BackupOutput defines the output for the thresholds_backup tool.
type BackupOutput struct {
	Path    string `json:"path" jsonschema:"Archive file written"`
	Runs    int    `json:"runs" jsonschema:"Number of runs archived"`
	Records int    `json:"records" jsonschema:"Number of per-node records archived"`
	Pruned  int    `json:"pruned" jsonschema:"Older archives removed by the keep limit"`
	Message string `json:"message" jsonschema:"Human-readable result message"`
}

// RestoreInput defines the input for the thresholds_restore tool.
type RestoreInput struct {
	Path string `json:"path" jsonschema:"Archive file name or path inside the backup directory"`
	Mode string `json:"mode,omitempty" jsonschema:"merge (default) skips runs already stored and replace overwrites them"`
}

// RestoreOutput defines the output for the thresholds_restore tool.
type RestoreOutput struct {
	RunsRestored    int    `json:"runs_restored" jsonschema:"Runs written to the store"`
	RunsSkipped     int    `json:"runs_skipped" jsonschema:"Runs already stored and left untouched"`
	RunsReplaced    int    `json:"runs_replaced" jsonschema:"Stored runs overwritten by the archive"`
	RecordsRestored int    `json:"records_restored" jsonschema:"Per-node records written"`
	Message         string `json:"message" jsonschema:"Human-readable result message"`
}
