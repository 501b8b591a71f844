package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditFileName is the audit log written inside the audit directory.
const AuditFileName = "audit.jsonl"

// AuditEntry represents a single audit log entry for an MCP tool invocation.
// It captures metadata about the call without including equation or seed content.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger appends audit entries to a JSONL file. It is safe for
// concurrent use. A nil AuditLogger is safe to use; all methods are no-ops.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger creates an audit logger writing to dir/audit.jsonl.
// If the file cannot be created, a warning is printed to stderr and nil is
// returned (non-fatal).
func NewAuditLogger(dir string) *AuditLogger {
	if err := os.MkdirAll(dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", dir, err)
		return nil
	}

	path := filepath.Join(dir, AuditFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &AuditLogger{file: f}
}

// Log appends entry as a single JSON line. Safe to call on nil receiver.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return // silently skip malformed entries
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	_, _ = a.file.Write(append(data, '\n'))
}

// Close closes the audit log file. Safe to call on nil receiver and more
// than once.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// sanitizeToolParams extracts safe metadata from tool parameters.
//
// Parameters are classified into three categories:
//   - Safe-value params: both key and value are logged (e.g., "model", "nodes")
//   - Presence-only params: key is logged as "(set)" when a value was given
//   - Unknown params: not logged at all
//
// A "_param_count" key records how many params were provided.
func sanitizeToolParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	safeValueParams := map[string]bool{
		"model":      true,
		"graph":      true,
		"nodes":      true,
		"replicates": true,
		"seed":       true,
		"run_id":     true,
		"identifier": true,
		"limit":      true,
		"keep":       true,
		"mode":       true,
	}

	// Equations and seed lists can be large and paths name the user's files;
	// only their presence is kept.
	presenceOnlyParams := map[string]bool{
		"equation": true,
		"seeds":    true,
		"path":     true,
	}

	result := make(map[string]string)
	count := 0
	for key, val := range params {
		if isZero(val) {
			continue
		}
		count++
		if safeValueParams[key] {
			result[key] = fmt.Sprintf("%v", val)
		} else if presenceOnlyParams[key] {
			result[key] = "(set)"
		}
	}
	result["_param_count"] = fmt.Sprintf("%d", count)

	return result
}

// isZero reports whether a tool argument was left unset.
func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case uint64:
		return x == 0
	case bool:
		return !x
	}
	return false
}

// auditTool logs a tool invocation to the audit log.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
}
