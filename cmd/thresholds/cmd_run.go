package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/georgeberry/thresholds/internal/cascade"
	"github.com/georgeberry/thresholds/internal/config"
	"github.com/georgeberry/thresholds/internal/constants"
	"github.com/georgeberry/thresholds/internal/logging"
	"github.com/georgeberry/thresholds/internal/metrics"
	"github.com/georgeberry/thresholds/internal/simulation"
	"github.com/georgeberry/thresholds/internal/store"
	"github.com/georgeberry/thresholds/internal/topology"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "Run a batch of simulation replicates",
		Long: `Run a scenario: a model, a topology, a threshold equation and a
number of replicates. The scenario comes from a YAML file, from flags, or
from a file with flags overriding individual fields.

Records are written to every configured sink: the output directory
(csv or jsonl), the SQLite database, Postgres, or stdout.

Examples:
  thresholds run scenario.yaml
  thresholds run --model integer --threshold 2 --nodes 500 --replicates 10
  thresholds run --model push --graph-file net.edges --activation-prob 0.3 --stdout
  thresholds run scenario.yaml --sqlite runs.db --visits visits.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			toStdout, _ := cmd.Flags().GetBool("stdout")
			visitsPath, _ := cmd.Flags().GetString("visits")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyOutputFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			sc, err := scenarioFromFlags(cmd, args)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			sink, err := openSinks(ctx, cfg, cmd.OutOrStdout(), toStdout, logger)
			if err != nil {
				return err
			}
			defer sink.Close()

			reg := metrics.NewRegistry()
			if cfg.Metrics.Addr != "" {
				stop := serveMetrics(cfg.Metrics.Addr, reg, logger)
				defer stop()
			}

			opts := []simulation.Option{
				simulation.WithLogger(logger),
				simulation.WithMetrics(reg),
				simulation.WithDefaults(cfg.Batch.Workers, cfg.Batch.Replicates),
			}
			if cfg.Output.Dir != "" {
				runLog := logging.NewRunLogger(cfg.Output.Dir, cfg.Logging.Level)
				defer runLog.Close()
				opts = append(opts, simulation.WithRunLogger(runLog))
			}

			var visits *simulation.VisitLog
			if visitsPath != "" {
				f, err := os.Create(visitsPath)
				if err != nil {
					return fmt.Errorf("failed to create visit log: %w", err)
				}
				defer f.Close()
				visits = simulation.NewVisitLog(f)
				opts = append(opts, simulation.WithVisitLog(visits))
			}

			batch, err := simulation.NewRunner(sink, opts...).Run(ctx, sc)
			if err != nil {
				return err
			}
			if visits != nil {
				if err := visits.Flush(); err != nil {
					return fmt.Errorf("failed to write visit log: %w", err)
				}
			}

			// Records own stdout when --stdout is set.
			out := cmd.OutOrStdout()
			if toStdout {
				out = cmd.ErrOrStderr()
			}
			if jsonOut {
				return json.NewEncoder(out).Encode(batch)
			}
			printBatch(out, batch)
			return nil
		},
	}

	// Scenario
	cmd.Flags().String("model", "", "Model: integer, fractional, push or pull")
	cmd.Flags().String("graph", "", "Graph generator (default watts-strogatz)")
	cmd.Flags().Int("nodes", constants.DefaultGraphSize, "Number of nodes in the generated graph")
	cmd.Flags().Int("mean-degree", constants.DefaultMeanDegree, "Target mean degree of the generated graph")
	cmd.Flags().Float64("graph-prob", constants.DefaultRewireProb, "Rewiring or triad formation probability")
	cmd.Flags().String("graph-file", "", "Load the topology from an edge list or DOT file")
	cmd.Flags().Bool("regenerate", false, "Draw a fresh graph for every replicate")
	cmd.Flags().String("equation", "", "Threshold equation YAML file")
	cmd.Flags().Float64("threshold", 0, "Constant threshold for every node (instead of --equation)")
	cmd.Flags().Float64("activation-prob", constants.DefaultActivationProb, "Per-trial success probability p (push, pull)")
	cmd.Flags().Float64("seed-fraction", 0, "Share of nodes active before the first step")
	cmd.Flags().Int64Slice("seeds", nil, "Node IDs active before the first step")
	cmd.Flags().Int("replicates", 0, "Number of replicates (default from config)")
	cmd.Flags().Int("workers", 0, "Replicates simulated concurrently (default from config)")
	cmd.Flags().Uint64("seed", constants.DefaultSeed, "Base random seed")

	// Output
	cmd.Flags().StringP("output", "o", "", "Output directory for record files (overrides config)")
	cmd.Flags().String("format", "", "Record file format: csv or jsonl (overrides config)")
	cmd.Flags().String("sqlite", "", "SQLite results database (overrides config)")
	cmd.Flags().String("postgres", "", "Postgres connection URL (overrides config)")
	cmd.Flags().Bool("stdout", false, "Write records to stdout")
	cmd.Flags().String("visits", "", "Write every node visit to this CSV file")

	return cmd
}

// scenarioFromFlags builds the scenario from an optional file and the flags
// the user set explicitly.
func scenarioFromFlags(cmd *cobra.Command, args []string) (simulation.Scenario, error) {
	flags := cmd.Flags()

	sc := simulation.DefaultScenario()
	if len(args) == 1 {
		var err error
		if sc, err = simulation.LoadScenarioFile(args[0]); err != nil {
			return simulation.Scenario{}, err
		}
	}

	if flags.Changed("model") {
		s, _ := flags.GetString("model")
		model, err := cascade.ParseModel(s)
		if err != nil {
			return simulation.Scenario{}, err
		}
		sc.Model = model
	}

	switch {
	case flags.Changed("graph-file"):
		path, _ := flags.GetString("graph-file")
		g, err := topology.LoadFile(path)
		if err != nil {
			return simulation.Scenario{}, err
		}
		sc = sc.WithGraph(g, path)
	case sc.Graph == nil && sc.GraphFile == "",
		flags.Changed("graph"), flags.Changed("nodes"), flags.Changed("mean-degree"), flags.Changed("graph-prob"):
		spec, err := graphSpecFromFlags(cmd, sc.Graph)
		if err != nil {
			return simulation.Scenario{}, err
		}
		sc = sc.WithGraphSpec(spec)
	}

	if flags.Changed("equation") {
		sc.EquationFile, _ = flags.GetString("equation")
		sc.Equation = nil
	}
	if flags.Changed("threshold") {
		t, _ := flags.GetFloat64("threshold")
		sc.Equation = simulation.ConstantEquation(t)
		sc.EquationFile = ""
	}

	if flags.Changed("activation-prob") {
		sc.ActivationProb, _ = flags.GetFloat64("activation-prob")
	}
	if flags.Changed("seed-fraction") {
		sc.SeedFraction, _ = flags.GetFloat64("seed-fraction")
	}
	if flags.Changed("seeds") {
		sc.Seeds, _ = flags.GetInt64Slice("seeds")
	}
	if flags.Changed("replicates") {
		sc.Replicates, _ = flags.GetInt("replicates")
	}
	if flags.Changed("workers") {
		sc.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("seed") {
		sc.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("regenerate") {
		sc.RegenerateGraph, _ = flags.GetBool("regenerate")
	}
	if sc.Name == "" {
		sc.Name = string(sc.Model)
	}

	return sc, nil
}

// graphSpecFromFlags starts from base (or the generator defaults) and
// applies the graph flags that were set.
func graphSpecFromFlags(cmd *cobra.Command, base *topology.Spec) (topology.Spec, error) {
	flags := cmd.Flags()

	spec := topology.Spec{
		Kind:       topology.KindWattsStrogatz,
		Nodes:      constants.DefaultGraphSize,
		MeanDegree: constants.DefaultMeanDegree,
		Prob:       constants.DefaultRewireProb,
	}
	if base != nil {
		spec = *base
	}

	if flags.Changed("graph") {
		s, _ := flags.GetString("graph")
		kind, err := topology.ParseKind(s)
		if err != nil {
			return topology.Spec{}, err
		}
		spec.Kind = kind
	}
	if flags.Changed("nodes") || base == nil {
		spec.Nodes, _ = flags.GetInt("nodes")
	}
	if flags.Changed("mean-degree") || base == nil {
		spec.MeanDegree, _ = flags.GetInt("mean-degree")
	}
	if flags.Changed("graph-prob") || base == nil {
		spec.Prob, _ = flags.GetFloat64("graph-prob")
	}
	return spec, nil
}

// applyOutputFlags lets per-invocation flags override the configured sinks.
func applyOutputFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Dir, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		format, _ := flags.GetString("format")
		cfg.Output.Format = constants.OutputFormat(format)
	}
	if flags.Changed("sqlite") {
		cfg.Output.SQLitePath, _ = flags.GetString("sqlite")
	}
	if flags.Changed("postgres") {
		cfg.Output.PostgresURL, _ = flags.GetString("postgres")
	}
}

// openSinks opens every sink enabled by cfg. The returned sink fans out to
// all of them; closing it closes each one.
func openSinks(ctx context.Context, cfg *config.Config, stdout io.Writer, toStdout bool, logger *slog.Logger) (*store.MultiSink, error) {
	var sinks []store.Sink
	fail := func(err error) (*store.MultiSink, error) {
		store.NewMultiSink(sinks...).Close()
		return nil, err
	}

	if cfg.Output.Dir != "" {
		fs, err := store.NewFileSink(cfg.Output.Dir, cfg.Output.Format)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, fs)
		logger.Debug("file sink enabled", "dir", cfg.Output.Dir, "format", cfg.Output.Format)
	}
	if cfg.Output.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Output.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("failed to open SQLite store: %w", err))
		}
		sinks = append(sinks, ss)
		logger.Debug("sqlite sink enabled", "path", cfg.Output.SQLitePath)
	}
	if cfg.Output.PostgresURL != "" {
		ps, err := store.NewPostgresStore(ctx, cfg.Output.PostgresURL)
		if err != nil {
			return fail(fmt.Errorf("failed to open Postgres store: %w", err))
		}
		sinks = append(sinks, ps)
		logger.Debug("postgres sink enabled", "url", cfg.Output.RedactedPostgresURL())
	}
	if toStdout {
		sinks = append(sinks, store.NewStreamSink(stdout, cfg.Output.Format))
	}

	return store.NewMultiSink(sinks...), nil
}

// serveMetrics exposes reg on addr until the returned stop function is called.
func serveMetrics(addr string, reg *metrics.Registry, logger *slog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func printBatch(w io.Writer, b *simulation.Batch) {
	if b.Scenario != "" {
		fmt.Fprintf(w, "Scenario:        %s\n", b.Scenario)
	}
	fmt.Fprintf(w, "Identifier:      %s\n", b.Identifier)
	fmt.Fprintf(w, "Model:           %s\n", b.Model)
	fmt.Fprintf(w, "Runs:            %d (%d converged, %d stalled)\n", len(b.Runs), b.Converged, b.Stalled)
	fmt.Fprintf(w, "Mean activated:  %.1f\n", b.MeanActivated)
	fmt.Fprintf(w, "Observed share:  %.3f (sd %.3f)\n", b.MeanObservedShare, b.SDObservedShare)
	fmt.Fprintf(w, "Duration:        %s\n", b.Duration.Round(time.Millisecond))
}
