package main

import (
	"encoding/json"
	"fmt"

	"github.com/georgeberry/thresholds/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show thresholds configuration",
		Long: `Show the effective configuration.

Configuration is read from ~/.thresholds/config.yaml (or --config) and
overridden by THRESHOLDS_* environment variables.

Examples:
  thresholds config show
  thresholds config path`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				// Redact credentials before serialization
				redacted := *cfg
				redacted.Output.PostgresURL = cfg.Output.RedactedPostgresURL()
				return json.NewEncoder(out).Encode(redacted)
			}

			fmt.Fprintln(out, "Logging:")
			fmt.Fprintf(out, "  logging.level:       %s\n", cfg.Logging.Level)
			fmt.Fprintln(out, "Output:")
			fmt.Fprintf(out, "  output.dir:          %s\n", valueOrDefault(cfg.Output.Dir, "(disabled)"))
			fmt.Fprintf(out, "  output.format:       %s\n", cfg.Output.Format)
			fmt.Fprintf(out, "  output.sqlite_path:  %s\n", valueOrDefault(cfg.Output.SQLitePath, "(disabled)"))
			fmt.Fprintf(out, "  output.postgres_url: %s\n", valueOrDefault(cfg.Output.RedactedPostgresURL(), "(disabled)"))
			fmt.Fprintln(out, "Batch:")
			fmt.Fprintf(out, "  batch.workers:       %d\n", cfg.Batch.Workers)
			fmt.Fprintf(out, "  batch.replicates:    %d\n", cfg.Batch.Replicates)
			fmt.Fprintln(out, "Metrics:")
			fmt.Fprintf(out, "  metrics.addr:        %s\n", valueOrDefault(cfg.Metrics.Addr, "(disabled)"))
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the default config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// valueOrDefault returns value if non-empty, otherwise returns defaultVal.
func valueOrDefault(value, defaultVal string) string {
	if value == "" {
		return defaultVal
	}
	return value
}
