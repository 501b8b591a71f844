package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/georgeberry/thresholds/internal/config"
	"github.com/georgeberry/thresholds/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Threshold and cascade contagion simulator",
		Long: `thresholds simulates social contagion on networks and measures how often
an outside observer would recover each node's activation threshold.

It runs integer and fractional threshold models and push/pull independent
cascades, writes one record per node per run, and keeps run summaries in
flat files, SQLite or Postgres.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.thresholds/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newGraphCmd(),
		newEquationCmd(),
		newParamSpaceCmd(),
		newRunsCmd(),
		newMCPServerCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

// loadConfig resolves configuration for a command: the --config file or
// the default location, environment overrides, then --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
		if err == nil {
			err = config.ApplyEnv(cfg)
		}
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns the operational logger for a command. Logs go to the
// command's stderr so they never mix with record output.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// signalContext returns a context cancelled on SIGINT (and SIGTERM outside
// Windows).
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
