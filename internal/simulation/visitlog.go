package simulation

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"

	"github.com/georgeberry/thresholds/internal/cascade"
)

var visitColumns = []string{"run_id", "step", "epoch", "node", "exposure", "active", "activated"}

// VisitLog writes every visit of every run as CSV. It is safe for
// concurrent use by replicates of one batch.
type VisitLog struct {
	mu     sync.Mutex
	w      *csv.Writer
	header bool
	err    error
}

// NewVisitLog creates a VisitLog writing to w.
func NewVisitLog(w io.Writer) *VisitLog {
	return &VisitLog{w: csv.NewWriter(w)}
}

// Observer returns a cascade.VisitObserver tagging rows with runID.
func (l *VisitLog) Observer(runID string) cascade.VisitObserver {
	return cascade.VisitFunc(func(v cascade.Visit) {
		l.write(runID, v)
	})
}

func (l *VisitLog) write(runID string, v cascade.Visit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return
	}
	if !l.header {
		l.header = true
		if l.err = l.w.Write(visitColumns); l.err != nil {
			return
		}
	}
	l.err = l.w.Write([]string{
		runID,
		strconv.Itoa(v.Step),
		strconv.Itoa(v.Epoch),
		strconv.FormatInt(v.Node, 10),
		strconv.FormatFloat(v.Exposure, 'g', -1, 64),
		strconv.Itoa(v.Active),
		strconv.FormatBool(v.Activated),
	})
}

// Flush writes buffered rows and returns the first error seen.
func (l *VisitLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if l.err != nil {
		return l.err
	}
	return l.w.Error()
}
