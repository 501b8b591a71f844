// Package logging provides leveled logging and run tracing.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A RunLogger appending one JSON line per finished run (runs.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/georgeberry/thresholds/internal/constants"
)

// LevelTrace is a custom slog level below Debug. At this level every
// replicate's seed, graph and timing are logged.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a supported level.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// RunLogger appends run events to a JSONL file.
// It is safe for concurrent use. A nil RunLogger is safe to use;
// all methods are no-ops on nil receiver.
type RunLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewRunLogger creates a run logger writing to dir/runs.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewRunLogger(dir string, level string) *RunLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil
	}

	path := filepath.Join(dir, constants.RunLogFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}

	return &RunLogger{file: f}
}

// Log writes an event as a single JSONL line.
// A "time" field is added automatically. The caller's map is not mutated.
// Safe to call on nil receiver.
func (rl *RunLogger) Log(event map[string]any) {
	if rl == nil {
		return
	}

	entry := make(map[string]any, len(event)+1)
	maps.Copy(entry, event)
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	rl.write(entry)
}

// LogRun writes v, which must encode as a JSON object, under the given
// event name.
func (rl *RunLogger) LogRun(event string, v any) {
	if rl == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	entry := make(map[string]any)
	if err := json.Unmarshal(data, &entry); err != nil {
		return
	}
	entry["event"] = event
	rl.Log(entry)
}

func (rl *RunLogger) write(entry map[string]any) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.file == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = rl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (rl *RunLogger) Close() {
	if rl == nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.file != nil {
		rl.file.Close()
		rl.file = nil
	}
}
