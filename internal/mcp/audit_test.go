package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readAuditEntries(t *testing.T, dir string) []AuditEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("malformed audit line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLogger_Log(t *testing.T) {
	dir := t.TempDir()
	a := NewAuditLogger(dir)
	if a == nil {
		t.Fatal("NewAuditLogger returned nil")
	}

	a.Log(AuditEntry{Timestamp: time.Now(), Tool: "thresholds_runs", Status: "success"})
	a.Log(AuditEntry{Timestamp: time.Now(), Tool: "thresholds_simulate", Status: "error", Error: "boom"})
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readAuditEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[1].Tool != "thresholds_simulate" || entries[1].Error != "boom" {
		t.Errorf("entry = %+v", entries[1])
	}

	info, err := os.Stat(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("audit log permissions = %o, want 600", perm)
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var a *AuditLogger
	a.Log(AuditEntry{Tool: "x"})
	if err := a.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestAuditLogger_LogAfterClose(t *testing.T) {
	a := NewAuditLogger(t.TempDir())
	a.Close()
	a.Close()
	a.Log(AuditEntry{Tool: "after_close"})
}

func TestSanitizeToolParams(t *testing.T) {
	got := sanitizeToolParams(map[string]any{
		"model":    "integer",
		"nodes":    100,
		"seed":     uint64(0),
		"equation": true,
		"seeds":    false,
		"secret":   "should not appear",
	})

	if got["model"] != "integer" || got["nodes"] != "100" {
		t.Errorf("safe values missing: %v", got)
	}
	if got["equation"] != "(set)" {
		t.Errorf("equation = %q, want (set)", got["equation"])
	}
	if _, ok := got["seeds"]; ok {
		t.Error("unset presence-only param logged")
	}
	if _, ok := got["seed"]; ok {
		t.Error("zero seed logged")
	}
	if _, ok := got["secret"]; ok {
		t.Error("unknown param logged")
	}
	if got["_param_count"] != "4" {
		t.Errorf("_param_count = %q, want 4", got["_param_count"])
	}

	if sanitizeToolParams(nil) != nil {
		t.Error("nil params should give nil")
	}
}

func TestAuditTool_WritesEntries(t *testing.T) {
	dir := t.TempDir()
	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", AuditDir: dir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx := context.Background()
	if _, _, err := server.handleRuns(ctx, nil, RunsInput{Limit: 5}); err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	server.auditTool("thresholds_simulate", time.Now(), errors.New("bad input"), nil)
	server.Close()

	entries := readAuditEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Tool != "thresholds_runs" || entries[0].Status != "success" || entries[0].Params["limit"] != "5" {
		t.Errorf("runs entry = %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "bad input" {
		t.Errorf("error entry = %+v", entries[1])
	}
}
