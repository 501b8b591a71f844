package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/georgeberry/thresholds/internal/backup"
	"github.com/georgeberry/thresholds/internal/pathutil"
	"github.com/georgeberry/thresholds/internal/ratelimit"
	"github.com/georgeberry/thresholds/internal/store"
)

// archivePath confines a client-supplied archive path to the backup
// directory. An empty path gets a timestamped name.
func (s *Server) archivePath(path string) (string, error) {
	if path == "" {
		return backup.GenerateBackupPath(s.backupDir), nil
	}
	return pathutil.Confine(path, s.backupDir)
}

// handleBackup implements the thresholds_backup tool.
func (s *Server) handleBackup(ctx context.Context, req *sdk.CallToolRequest, args BackupInput) (_ *sdk.CallToolResult, _ BackupOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolBackup, start, retErr, sanitizeToolParams(map[string]any{
			"path": args.Path, "model": args.Model, "identifier": args.Identifier, "keep": args.Keep,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolBackup); err != nil {
		return nil, BackupOutput{}, err
	}
	if args.Keep < 0 {
		return nil, BackupOutput{}, fmt.Errorf("keep must be non-negative, got %d", args.Keep)
	}

	path, err := s.archivePath(args.Path)
	if err != nil {
		return nil, BackupOutput{}, fmt.Errorf("invalid backup path: %w", err)
	}

	archive, err := backup.Backup(ctx, s.store, store.RunFilter{Model: args.Model, Identifier: args.Identifier}, path)
	if err != nil {
		return nil, BackupOutput{}, fmt.Errorf("backup failed: %w", err)
	}

	out := BackupOutput{Path: path, Runs: len(archive.Runs), Records: archive.RecordCount()}
	if args.Keep > 0 {
		deleted, err := backup.ApplyRetention(s.backupDir, backup.CountPolicy{MaxCount: args.Keep})
		if err != nil {
			s.logger.Warn("backup retention failed", "error", err)
		}
		out.Pruned = len(deleted)
	}
	out.Message = fmt.Sprintf("Archived %d runs (%d records) to %s", out.Runs, out.Records, pathutil.Redact(path))
	s.logger.Info("runs archived", "runs", out.Runs, "records", out.Records, "pruned", out.Pruned)
	return nil, out, nil
}

// handleRestore implements the thresholds_restore tool.
func (s *Server) handleRestore(ctx context.Context, req *sdk.CallToolRequest, args RestoreInput) (_ *sdk.CallToolResult, _ RestoreOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolRestore, start, retErr, sanitizeToolParams(map[string]any{
			"path": args.Path, "mode": args.Mode,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolRestore); err != nil {
		return nil, RestoreOutput{}, err
	}
	mode, err := backup.ParseRestoreMode(args.Mode)
	if err != nil {
		return nil, RestoreOutput{}, err
	}
	if args.Path == "" {
		return nil, RestoreOutput{}, fmt.Errorf("path is required")
	}
	path, err := s.archivePath(args.Path)
	if err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("invalid backup path: %w", err)
	}

	res, err := backup.Restore(ctx, s.store, path, mode)
	if err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("restore failed: %w", err)
	}
	return nil, RestoreOutput{
		RunsRestored:    res.RunsRestored,
		RunsSkipped:     res.RunsSkipped,
		RunsReplaced:    res.RunsReplaced,
		RecordsRestored: res.RecordsRestored,
		Message: fmt.Sprintf("Restored %d runs (%d records), skipped %d, replaced %d",
			res.RunsRestored, res.RecordsRestored, res.RunsSkipped, res.RunsReplaced),
	}, nil
}
