package main

import (
	"encoding/json"
	"fmt"

	"github.com/georgeberry/thresholds/internal/backup"
	"github.com/georgeberry/thresholds/internal/store"
	"github.com/spf13/cobra"
)

func newRunsBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup [file]",
		Short: "Archive stored runs and their records",
		Long: `Write runs and their per-node records to a gzip-compressed archive with
a SHA-256 checksum. Without a file argument the archive goes to
~/.thresholds/backups/ under a timestamped name, and --keep/--max-age
prune older archives there.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			model, _ := cmd.Flags().GetString("model")
			identifier, _ := cmd.Flags().GetString("identifier")
			keep, _ := cmd.Flags().GetInt("keep")
			maxAge, _ := cmd.Flags().GetString("max-age")

			var policy backup.AnyPolicy
			if keep > 0 {
				policy = append(policy, backup.CountPolicy{MaxCount: keep})
			}
			if maxAge != "" {
				d, err := backup.ParseDuration(maxAge)
				if err != nil {
					return err
				}
				policy = append(policy, backup.AgePolicy{MaxAge: d})
			}

			s, err := openResultsDB(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			backupDir, err := backup.DefaultBackupDir()
			if err != nil {
				return err
			}
			path := backup.GenerateBackupPath(backupDir)
			if len(args) == 1 {
				path = args[0]
			}

			archive, err := backup.Backup(cmd.Context(), s, store.RunFilter{Model: model, Identifier: identifier}, path)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			var pruned []string
			if len(args) == 0 && len(policy) > 0 {
				if pruned, err = backup.ApplyRetention(backupDir, policy); err != nil {
					return fmt.Errorf("retention failed: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"path":    path,
					"runs":    len(archive.Runs),
					"records": archive.RecordCount(),
					"pruned":  pruned,
				})
			}
			fmt.Fprintf(out, "Archived %d runs (%d records) to %s\n", len(archive.Runs), archive.RecordCount(), path)
			if len(pruned) > 0 {
				fmt.Fprintf(out, "Removed %d old archive(s)\n", len(pruned))
			}
			return nil
		},
	}

	cmd.Flags().String("model", "", "Only archive runs of this model")
	cmd.Flags().String("identifier", "", "Only archive runs with this identifier")
	cmd.Flags().Int("keep", 0, "Keep only this many newest archives in the backup directory")
	cmd.Flags().String("max-age", "", "Remove archives older than this (e.g. 30d, 2w, 720h)")

	return cmd
}

func newRunsRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Load runs from an archive into the results database",
		Long: `Restore runs from an archive. The results database is created if needed.
By default runs already stored are skipped; --mode replace overwrites them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeFlag, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}
			path, err := resultsDBPath(cmd)
			if err != nil {
				return err
			}
			s, err := store.NewSQLiteStore(path)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := backup.Restore(cmd.Context(), s, args[0], mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(res)
			}
			fmt.Fprintf(out, "Restored %d runs (%d records)", res.RunsRestored, res.RecordsRestored)
			if res.RunsSkipped > 0 {
				fmt.Fprintf(out, ", skipped %d already stored", res.RunsSkipped)
			}
			if res.RunsReplaced > 0 {
				fmt.Fprintf(out, ", replaced %d", res.RunsReplaced)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().String("mode", string(backup.RestoreMerge), "merge or replace")

	return cmd
}

func newRunsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check an archive's checksum and print its header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.ReadHeader(args[0])
			if err != nil {
				return err
			}
			if err := backup.VerifyChecksum(args[0]); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(header)
			}
			fmt.Fprintf(out, "OK: %d runs, %d records, created %s\n",
				header.RunCount, header.RecordCount, header.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
