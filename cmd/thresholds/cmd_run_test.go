package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/georgeberry/thresholds/internal/simulation"
)

func decodeBatch(t *testing.T, out string) simulation.Batch {
	t.Helper()
	var b simulation.Batch
	if err := json.Unmarshal([]byte(out), &b); err != nil {
		t.Fatalf("decode batch %q: %v", out, err)
	}
	return b
}

func TestRunCmd_FlagsToFilesAndSQLite(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	outDir := filepath.Join(tmpDir, "out")
	dbPath := filepath.Join(tmpDir, "runs.db")

	out, _, err := execute(t, "run",
		"--model", "integer", "--threshold", "0",
		"--graph", "cycle", "--nodes", "20",
		"--replicates", "2", "--workers", "2",
		"--output", outDir, "--sqlite", dbPath, "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	b := decodeBatch(t, out)
	if len(b.Runs) != 2 || b.MeanActivated != 20 || b.Converged != 2 {
		t.Fatalf("unexpected batch: %+v", b)
	}
	simulation.AssertAllConverged(t, &b)

	f, err := os.Open(filepath.Join(outDir, b.Identifier+".csv"))
	if err != nil {
		t.Fatalf("records file missing: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	if len(rows) != 1+40 {
		t.Errorf("records file has %d rows, want header + 40", len(rows))
	}
	if _, err := os.Stat(filepath.Join(outDir, "summaries.jsonl")); err != nil {
		t.Errorf("summaries missing: %v", err)
	}

	out, _, err = execute(t, "runs", "list", "--db", dbPath, "--json")
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil || listed.Count != 2 {
		t.Errorf("runs list = %q (err %v)", out, err)
	}

	out, _, err = execute(t, "runs", "show", b.Runs[0].ID, "--db", dbPath, "--records")
	if err != nil {
		t.Fatalf("runs show failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 21 || !strings.HasPrefix(lines[0], "run_id,node,activated") {
		t.Errorf("runs show --records printed %d lines, header %q", len(lines), lines[0])
	}

	out, _, err = execute(t, "runs", "show", b.Runs[1].ID, "--db", dbPath)
	if err != nil {
		t.Fatalf("runs show failed: %v", err)
	}
	if !strings.Contains(out, "Activated:       20") {
		t.Errorf("runs show output: %q", out)
	}

	if _, _, err := execute(t, "runs", "delete", b.Runs[0].ID, "--db", dbPath); err != nil {
		t.Fatalf("runs delete failed: %v", err)
	}
	if _, _, err := execute(t, "runs", "show", b.Runs[0].ID, "--db", dbPath); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("deleted run still shown: %v", err)
	}
}

func TestRunCmd_ScenarioFileWithOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	path := writeFile(t, tmpDir, "star.yaml", `
model: pull
graph:
  kind: star
  nodes: 6
activation_prob: 0
replicates: 1
`)

	out, _, err := execute(t, "run", path,
		"--model", "push", "--activation-prob", "1", "--seeds", "0", "--replicates", "3")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, want := range []string{"Scenario:        star", "Model:           push", "Runs:            3 (3 converged, 0 stalled)", "Mean activated:  6.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd_GraphFileAndStdout(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	graphPath := writeFile(t, tmpDir, "path.edges", "0 1\n1 2\n2 3\n")
	visitsPath := filepath.Join(tmpDir, "visits.csv")

	out, stderr, err := execute(t, "run",
		"--model", "fractional", "--threshold", "0",
		"--graph-file", graphPath, "--stdout", "--format", "jsonl",
		"--visits", visitsPath)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("stdout has %d records, want 4:\n%s", len(lines), out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if !strings.Contains(stderr, "Identifier:") {
		t.Errorf("summary not on stderr: %q", stderr)
	}

	data, err := os.ReadFile(visitsPath)
	if err != nil {
		t.Fatalf("visit log missing: %v", err)
	}
	if !strings.HasPrefix(string(data), "run_id,step,epoch,node") {
		t.Errorf("visit log header = %q", strings.SplitN(string(data), "\n", 2)[0])
	}
}

func TestRunCmd_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"threshold model without equation", []string{"run", "--nodes", "10"}, "requires an equation"},
		{"unknown model", []string{"run", "--model", "sir"}, "unknown model"},
		{"unknown graph", []string{"run", "--model", "push", "--graph", "lattice"}, "lattice"},
		{"missing scenario", []string{"run", filepath.Join(tmpDir, "nope.yaml")}, "reading scenario file"},
		{"bad format", []string{"run", "--model", "push", "--format", "xml"}, "invalid output format"},
		{"unknown seed", []string{"run", "--model", "push", "--graph", "path", "--nodes", "3", "--seeds", "9"}, "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
