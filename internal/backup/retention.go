package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info describes an archive file for retention decisions.
type Info struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

// RetentionPolicy decides which archives to keep. Archives are passed
// newest first.
type RetentionPolicy interface {
	Apply(archives []Info) (keep []Info)
}

// CountPolicy keeps the MaxCount most recent archives.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount archives.
func (p CountPolicy) Apply(archives []Info) []Info {
	return archives[:min(len(archives), max(p.MaxCount, 0))]
}

// AgePolicy keeps archives newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
}

// Apply keeps archives created within MaxAge of now.
func (p AgePolicy) Apply(archives []Info) []Info {
	cutoff := time.Now().Add(-p.MaxAge)
	var keep []Info
	for _, a := range archives {
		if a.CreatedAt.After(cutoff) {
			keep = append(keep, a)
		}
	}
	return keep
}

// AnyPolicy keeps an archive if any of its policies keeps it.
type AnyPolicy []RetentionPolicy

// Apply returns the union of what each policy keeps, in input order.
func (p AnyPolicy) Apply(archives []Info) []Info {
	kept := make(map[string]bool)
	for _, policy := range p {
		for _, a := range policy.Apply(archives) {
			kept[a.Path] = true
		}
	}
	var out []Info
	for _, a := range archives {
		if kept[a.Path] {
			out = append(out, a)
		}
	}
	return out
}

// List returns the archives in dir, newest first. A missing directory
// holds no archives.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var archives []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		a := Info{Path: filepath.Join(dir, name), Size: info.Size(), CreatedAt: info.ModTime()}
		if h, err := ReadHeader(a.Path); err == nil {
			a.CreatedAt = h.CreatedAt
		}
		archives = append(archives, a)
	}

	// The timestamp in the name sorts chronologically.
	sort.Slice(archives, func(i, j int) bool {
		return filepath.Base(archives[i].Path) > filepath.Base(archives[j].Path)
	})
	return archives, nil
}

// ApplyRetention deletes the archives in dir that policy does not keep.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	archives, err := List(dir)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	for _, a := range policy.Apply(archives) {
		keep[a.Path] = true
	}
	for _, a := range archives {
		if keep[a.Path] {
			continue
		}
		if err := os.Remove(a.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(a.Path), err)
		}
		deleted = append(deleted, a.Path)
	}
	return deleted, nil
}

// ParseDuration parses durations like "720h", "30d" or "2w".
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown duration suffix in %q", s)
}
