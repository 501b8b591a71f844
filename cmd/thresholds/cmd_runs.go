package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/georgeberry/thresholds/internal/record"
	"github.com/georgeberry/thresholds/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs stored in the SQLite results database",
		Long: `List, show, delete and archive runs kept in the SQLite results database.

The database is --db, else output.sqlite_path from the config, else
~/.thresholds/thresholds.db.

Examples:
  thresholds runs list --model integer --limit 5
  thresholds runs show 5f0c... --records > records.csv
  thresholds runs delete 5f0c...
  thresholds runs backup --keep 5
  thresholds runs restore ~/.thresholds/backups/thresholds-backup-20260101-120000.tar.json.gz`,
	}

	cmd.PersistentFlags().String("db", "", "SQLite results database")

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
		newRunsBackupCmd(),
		newRunsRestoreCmd(),
		newRunsVerifyCmd(),
	)

	return cmd
}

// resultsDBPath resolves the results database from --db, the config, or
// the default location.
func resultsDBPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return "", err
		}
		path = cfg.Output.SQLitePath
	}
	if path == "" {
		return store.DefaultSQLitePath()
	}
	return path, nil
}

// openResultsDB opens the results database. It refuses to create a new
// database, since an empty one has nothing to show.
func openResultsDB(cmd *cobra.Command) (*store.SQLiteStore, error) {
	path, err := resultsDBPath(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no results database at %s (run with --sqlite first)", path)
	}
	return store.NewSQLiteStore(path)
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			model, _ := cmd.Flags().GetString("model")
			identifier, _ := cmd.Flags().GetString("identifier")
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := openResultsDB(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(context.Background(), store.RunFilter{
				Model:      model,
				Identifier: identifier,
				Limit:      limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if runs == nil {
					runs = []store.RunSummary{}
				}
				return json.NewEncoder(out).Encode(map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMODEL\tGRAPH\tREP\tNODES\tACTIVATED\tOBSERVED\tUNOBSERVED\tSTALLED\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%t\t%s\n",
					r.ID, r.Model, r.Graph, r.Replicate, r.Nodes, r.Activated,
					r.Observed, r.Unobserved, r.Stalled, r.StartedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("model", "", "Only list runs of this model")
	cmd.Flags().String("identifier", "", "Only list runs with this identifier")
	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 for all)")

	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			withRecords, _ := cmd.Flags().GetBool("records")

			s, err := openResultsDB(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			run, err := s.GetRun(ctx, args[0])
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			var records []record.Record
			if withRecords {
				if records, err = s.Records(ctx, run.ID); err != nil {
					return fmt.Errorf("failed to read records: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"run":     run,
					"records": records,
				})
			}
			if withRecords {
				w := record.NewCSVWriter(out, record.CovariateNames(records))
				if err := w.Write(records); err != nil {
					return err
				}
				return w.Flush()
			}

			fmt.Fprintf(out, "Run:             %s\n", run.ID)
			if run.Scenario != "" {
				fmt.Fprintf(out, "Scenario:        %s\n", run.Scenario)
			}
			fmt.Fprintf(out, "Identifier:      %s\n", run.Identifier)
			fmt.Fprintf(out, "Model:           %s\n", run.Model)
			fmt.Fprintf(out, "Graph:           %s (%d nodes, %d edges)\n", run.Graph, run.Nodes, run.Edges)
			fmt.Fprintf(out, "Replicate:       %d (seed %d)\n", run.Replicate, run.Seed)
			fmt.Fprintf(out, "Seeds:           %d\n", run.Seeds)
			fmt.Fprintf(out, "Activated:       %d\n", run.Activated)
			fmt.Fprintf(out, "Observed:        %d correct, %d incorrect\n", run.Observed, run.Unobserved)
			fmt.Fprintf(out, "Visits / epochs: %d / %d\n", run.Visits, run.Epochs)
			fmt.Fprintf(out, "Stalled:         %t\n", run.Stalled)
			fmt.Fprintf(out, "Started:         %s (took %s)\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Duration)
			return nil
		},
	}

	cmd.Flags().Bool("records", false, "Print the run's per-node records as CSV")

	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openResultsDB(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeleteRun(context.Background(), args[0]); err != nil {
				if errors.Is(err, store.ErrRunNotFound) {
					return fmt.Errorf("run %s not found", args[0])
				}
				return fmt.Errorf("failed to delete run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}
