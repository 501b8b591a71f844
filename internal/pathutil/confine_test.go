package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestConfine(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	if err := os.MkdirAll(filepath.Join(allowed, "sub"), 0700); err != nil {
		t.Fatal(err)
	}
	allowedResolved, err := filepath.EvalSymlinks(allowed)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		dirs    []string
		want    string
		wantErr string
	}{
		{"file inside", filepath.Join(allowed, "a.gz"), []string{allowed}, filepath.Join(allowedResolved, "a.gz"), ""},
		{"nested missing dirs", filepath.Join(allowed, "x", "y", "a.gz"), []string{allowed}, filepath.Join(allowedResolved, "x", "y", "a.gz"), ""},
		{"relative to first dir", "a.gz", []string{allowed, other}, filepath.Join(allowedResolved, "a.gz"), ""},
		{"the dir itself", allowed, []string{allowed}, allowedResolved, ""},
		{"second dir matches", filepath.Join(other, "a.gz"), []string{allowed, other}, "", ""},
		{"dot-dot escape", filepath.Join(allowed, "..", "etc", "passwd"), []string{allowed}, "", "outside allowed"},
		{"relative escape", "../a.gz", []string{allowed}, "", "outside allowed"},
		{"other dir", filepath.Join(other, "a.gz"), []string{allowed}, "", "outside allowed"},
		{"prefix sibling", allowed + "x/a.gz", []string{allowed}, "", "outside allowed"},
		{"empty", "", []string{allowed}, "", "empty"},
		{"no dirs", filepath.Join(allowed, "a.gz"), nil, "", "no allowed directories"},
		{"null byte", filepath.Join(allowed, "a\x00.gz"), []string{allowed}, "", "null byte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Confine(tt.path, tt.dirs...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Confine() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Confine() error = %v", err)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("Confine() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfine_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	allowed := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(allowed, "link")); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	_, err := Confine(filepath.Join(allowed, "link", "a.gz"), allowed)
	if !errors.Is(err, ErrOutsideAllowed) {
		t.Errorf("Confine() through symlink error = %v, want ErrOutsideAllowed", err)
	}
}

func TestConfine_RedactsError(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	_, err := Confine(filepath.Join(other, "secret", "a.gz"), allowed)
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), other) {
		t.Errorf("error leaks full path: %v", err)
	}
	if !strings.Contains(err.Error(), ".../secret/a.gz") {
		t.Errorf("error = %v, want redacted path", err)
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a.gz", "a.gz"},
		{"/a.gz", "a.gz"},
		{"/home/user/.thresholds/backups/a.gz", ".../backups/a.gz"},
		{"dir/a.gz", ".../dir/a.gz"},
	}
	for _, tt := range tests {
		if got := Redact(tt.in); got != tt.want {
			t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
