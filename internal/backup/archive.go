// Package backup archives stored simulation runs and restores them into
// another store.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/georgeberry/thresholds/internal/record"
	"github.com/georgeberry/thresholds/internal/store"
)

// Archive is the payload of an archive file.
type Archive struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	Runs      []ArchivedRun `json:"runs"`
}

// ArchivedRun is a run summary together with its per-node records.
type ArchivedRun struct {
	Run     store.RunSummary `json:"run"`
	Records []record.Record  `json:"records"`
}

// RecordCount returns the number of records across all runs.
func (a *Archive) RecordCount() int {
	n := 0
	for _, r := range a.Runs {
		n += len(r.Records)
	}
	return n
}

// DefaultBackupDir returns the default archive directory (~/.thresholds/backups/).
func DefaultBackupDir() (string, error) {
	dir, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}

// GenerateBackupPath creates a timestamped archive filename in dir.
func GenerateBackupPath(dir string) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", filePrefix, ts, fileExt))
}

// Backup writes every run matching filter, with its records, to outputPath.
func Backup(ctx context.Context, src store.RunReader, filter store.RunFilter, outputPath string) (*Archive, error) {
	runs, err := src.ListRuns(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	archive := &Archive{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]ArchivedRun, 0, len(runs)),
	}
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := src.Records(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read records of run %s: %w", run.ID, err)
		}
		archive.Runs = append(archive.Runs, ArchivedRun{Run: run, Records: records})
	}

	if err := Write(outputPath, archive); err != nil {
		return nil, err
	}
	return archive, nil
}

// RestoreMode controls how restore handles runs that already exist.
type RestoreMode string

const (
	// RestoreMerge skips runs whose ID is already stored (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace deletes a stored run before writing the archived copy.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode parses a restore mode; empty means merge.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	}
	return "", fmt.Errorf("unknown restore mode %q (use merge or replace)", s)
}

// RestoreTarget is a store runs can be restored into.
type RestoreTarget interface {
	store.Sink
	GetRun(ctx context.Context, id string) (*store.RunSummary, error)
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	RunsRestored    int `json:"runs_restored"`
	RunsSkipped     int `json:"runs_skipped"`
	RunsReplaced    int `json:"runs_replaced"`
	RecordsRestored int `json:"records_restored"`
}

// Restore reads the archive at inputPath and writes its runs into dst.
// Replace mode requires dst to implement store.RunDeleter.
func Restore(ctx context.Context, dst RestoreTarget, inputPath string, mode RestoreMode) (*RestoreResult, error) {
	archive, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	deleter, canDelete := dst.(store.RunDeleter)
	if mode == RestoreReplace && !canDelete {
		return nil, fmt.Errorf("restore mode %s is not supported by this store", mode)
	}

	result := &RestoreResult{}
	for _, ar := range archive.Runs {
		_, err := dst.GetRun(ctx, ar.Run.ID)
		switch {
		case err == nil && mode == RestoreMerge:
			result.RunsSkipped++
			continue
		case err == nil:
			if err := deleter.DeleteRun(ctx, ar.Run.ID); err != nil {
				return nil, fmt.Errorf("failed to replace run %s: %w", ar.Run.ID, err)
			}
			result.RunsReplaced++
		case !errors.Is(err, store.ErrRunNotFound):
			return nil, fmt.Errorf("failed to check run %s: %w", ar.Run.ID, err)
		}

		if err := dst.WriteRun(ctx, ar.Run, ar.Records); err != nil {
			return nil, fmt.Errorf("failed to restore run %s: %w", ar.Run.ID, err)
		}
		result.RunsRestored++
		result.RecordsRestored += len(ar.Records)
	}

	return result, nil
}
