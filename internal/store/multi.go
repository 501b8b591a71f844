package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgeberry/thresholds/internal/record"
)

// MultiSink fans every run out to several sinks in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink returns a sink writing to every non-nil sink given.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of wrapped sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

// WriteRun writes to each sink, stopping at the first failure.
func (m *MultiSink) WriteRun(ctx context.Context, run RunSummary, records []record.Record) error {
	for i, s := range m.sinks {
		if err := s.WriteRun(ctx, run, records); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
