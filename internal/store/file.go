package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/georgeberry/thresholds/internal/constants"
	"github.com/georgeberry/thresholds/internal/record"
)

// SummariesFileName is the JSONL file FileSink appends run summaries to.
const SummariesFileName = "summaries.jsonl"

// FileSink writes records to flat files in a directory. Runs sharing an
// identifier append to the same file, so replicates of one configuration
// end up in one table. Thread-safe for concurrent access.
type FileSink struct {
	mu     sync.Mutex
	dir    string
	format constants.OutputFormat
}

// NewFileSink creates dir if needed and returns a sink writing in format.
func NewFileSink(dir string, format constants.OutputFormat) (*FileSink, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("invalid output format %q", format)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileSink{dir: dir, format: format}, nil
}

// Dir returns the output directory.
func (s *FileSink) Dir() string { return s.dir }

// RecordsPath returns the file that records of run are appended to.
func (s *FileSink) RecordsPath(run RunSummary) string {
	name := run.Identifier
	if name == "" {
		name = run.ID
	}
	return filepath.Join(s.dir, sanitizeFileName(name)+s.format.Extension())
}

// WriteRun appends the records and the summary.
func (s *FileSink) WriteRun(ctx context.Context, run RunSummary, records []record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendRecords(s.RecordsPath(run), records); err != nil {
		return fmt.Errorf("failed to write records for run %s: %w", run.ID, err)
	}
	if err := s.appendSummary(run); err != nil {
		return fmt.Errorf("failed to write summary for run %s: %w", run.ID, err)
	}
	return nil
}

func (s *FileSink) appendRecords(path string, records []record.Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	w := newRecordWriter(f, s.format, record.CovariateNames(records), info.Size() > 0)
	if err := w.Write(records); err != nil {
		return err
	}
	return w.Flush()
}

func (s *FileSink) appendSummary(run RunSummary) error {
	f, err := os.OpenFile(filepath.Join(s.dir, SummariesFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(run)
}

// Close is a no-op; files are closed after every write.
func (s *FileSink) Close() error { return nil }

// StreamSink writes the records of every run to a single stream, such as
// stdout. CSV columns are fixed by the first run written.
type StreamSink struct {
	mu         sync.Mutex
	w          io.Writer
	format     constants.OutputFormat
	covariates []string
	started    bool
}

// NewStreamSink returns a sink writing records to w in format.
func NewStreamSink(w io.Writer, format constants.OutputFormat) *StreamSink {
	return &StreamSink{w: w, format: format}
}

// WriteRun writes the records of run.
func (s *StreamSink) WriteRun(ctx context.Context, run RunSummary, records []record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.covariates = record.CovariateNames(records)
	}
	w := newRecordWriter(s.w, s.format, s.covariates, s.started)
	s.started = true
	if err := w.Write(records); err != nil {
		return fmt.Errorf("failed to write records for run %s: %w", run.ID, err)
	}
	return w.Flush()
}

// Close is a no-op; the caller owns the stream.
func (s *StreamSink) Close() error { return nil }

func newRecordWriter(w io.Writer, format constants.OutputFormat, covariates []string, skipHeader bool) record.Writer {
	if format == constants.FormatJSONL {
		return record.NewJSONLWriter(w)
	}
	cw := record.NewCSVWriter(w, covariates)
	if skipHeader {
		cw.SkipHeader()
	}
	return cw
}

// sanitizeFileName replaces path separators so an identifier is a single
// path element.
func sanitizeFileName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}
