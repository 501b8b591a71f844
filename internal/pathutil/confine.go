// Package pathutil confines caller-supplied file paths to known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is returned when a path escapes every allowed directory.
var ErrOutsideAllowed = errors.New("path is outside allowed directories")

// Redact shortens a path to .../<parent>/<base> so error messages don't
// leak the home directory.
func Redact(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Confine resolves path and returns its absolute, symlink-free form if it
// lies inside one of dirs. A relative path is taken relative to the first
// directory, so callers can accept bare file names. The file itself need
// not exist.
func Confine(path string, dirs ...string) (string, error) {
	switch {
	case path == "":
		return "", errors.New("path is empty")
	case len(dirs) == 0:
		return "", errors.New("no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return "", errors.New("path contains null byte")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(dirs[0], path)
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", Redact(path), err)
	}
	// Symlinks are resolved on the parent so a linked directory inside an
	// allowed tree cannot point outside it.
	parent, err := resolve(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(parent, filepath.Base(abs))

	for _, dir := range dirs {
		allowed, err := filepath.Abs(filepath.Clean(dir))
		if err != nil {
			continue
		}
		if allowed, err = resolve(allowed); err != nil {
			continue
		}
		if within(resolved, allowed) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideAllowed, Redact(abs))
}

// resolve evaluates symlinks on the deepest existing ancestor of dir and
// re-appends the missing tail.
func resolve(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve %s", Redact(dir))
	}
	resolvedParent, err := resolve(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// within reports whether path is base or below it.
func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}
