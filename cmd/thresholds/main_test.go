package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.thresholds/
// MUST be called for any test that loads config or opens the default database
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
}

// execute runs the root command with args and returns what it wrote to
// stdout and stderr.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNewRootCmd(t *testing.T) {
	rootCmd := newRootCmd()
	want := []string{"version", "run", "graph", "equation", "paramspace", "runs", "mcp-server", "config"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}

	for _, flag := range []string{"json", "config", "log-level"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "thresholds version "+version) {
		t.Errorf("unexpected output: %q", out)
	}

	out, _, err = execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json failed: %v", err)
	}
	if !strings.Contains(out, `"version":"`+version+`"`) {
		t.Errorf("unexpected JSON output: %q", out)
	}
}

func TestNewMCPServerCmd(t *testing.T) {
	cmd := newMCPServerCmd()
	if cmd.Use != "mcp-server" {
		t.Errorf("Use = %q, want %q", cmd.Use, "mcp-server")
	}
	for _, flag := range []string{"db", "memory", "max-nodes", "no-audit"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	isolateHome(t, t.TempDir())
	if _, _, err := execute(t, "config", "show", "--log-level", "loud"); err == nil {
		t.Error("expected error for invalid log level")
	}
}
