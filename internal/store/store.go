// Package store persists simulation runs and their per-node records.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/georgeberry/thresholds/internal/record"
)

// ErrRunNotFound is returned when a run ID is unknown to a store.
var ErrRunNotFound = errors.New("run not found")

// RunSummary describes one completed run.
type RunSummary struct {
	ID         string `json:"id"`
	Scenario   string `json:"scenario,omitempty"`
	Identifier string `json:"identifier"`
	Model      string `json:"model"`
	Graph      string `json:"graph"`
	Replicate  int    `json:"replicate"`
	Seed       uint64 `json:"seed"`

	ActivationProb float64 `json:"activation_prob"`
	SeedFraction   float64 `json:"seed_fraction"`

	Nodes      int  `json:"nodes"`
	Edges      int  `json:"edges"`
	Seeds      int  `json:"seeds"`
	Activated  int  `json:"activated"`
	Observed   int  `json:"observed"`
	Unobserved int  `json:"unobserved"`
	Visits     int  `json:"visits"`
	Epochs     int  `json:"epochs"`
	Stalled    bool `json:"stalled"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Sink receives finished runs.
type Sink interface {
	// WriteRun persists a run summary together with its records. Run IDs
	// are derived from the scenario, so writing a run that is already
	// stored replaces it.
	WriteRun(ctx context.Context, run RunSummary, records []record.Record) error

	// Close releases resources held by the sink.
	Close() error
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Model      string
	Identifier string
	Limit      int
}

func (f RunFilter) matches(r RunSummary) bool {
	if f.Model != "" && r.Model != f.Model {
		return false
	}
	if f.Identifier != "" && r.Identifier != f.Identifier {
		return false
	}
	return true
}

// RunReader reads runs back from a store.
type RunReader interface {
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)

	// GetRun returns one run or ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*RunSummary, error)

	// Records returns the records of a run ordered by node.
	Records(ctx context.Context, id string) ([]record.Record, error)
}

// RunDeleter is implemented by stores that can drop a run.
type RunDeleter interface {
	// DeleteRun removes a run and its records, or returns ErrRunNotFound.
	DeleteRun(ctx context.Context, id string) error
}
