package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/georgeberry/thresholds/internal/record"
)

// MemoryStore keeps runs in memory. It serves tests and in-process callers
// that want the records back without touching disk.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    []RunSummary
	records map[string][]record.Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]record.Record)}
}

// WriteRun stores the run, replacing a stored run with the same ID.
func (s *MemoryStore) WriteRun(ctx context.Context, run RunSummary, records []record.Record) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[run.ID]; exists {
		s.runs = slices.DeleteFunc(s.runs, func(r RunSummary) bool { return r.ID == run.ID })
	}
	s.runs = append(s.runs, run)
	s.records[run.ID] = slices.Clone(records)
	return nil
}

// ListRuns returns matching runs, most recently written first.
func (s *MemoryStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RunSummary
	for i := len(s.runs) - 1; i >= 0; i-- {
		if !filter.matches(s.runs[i]) {
			continue
		}
		out = append(out, s.runs[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// GetRun returns the run with the given ID.
func (s *MemoryStore) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.runs {
		if r.ID == id {
			run := r
			return &run, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

// Records returns the records of the run with the given ID.
func (s *MemoryStore) Records(ctx context.Context, id string) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return slices.Clone(recs), nil
}

// DeleteRun removes a run and its records.
func (s *MemoryStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	delete(s.records, id)
	s.runs = slices.DeleteFunc(s.runs, func(r RunSummary) bool { return r.ID == id })
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
