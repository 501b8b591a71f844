package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/georgeberry/thresholds/internal/cascade"
	"github.com/georgeberry/thresholds/internal/constants"
	"github.com/georgeberry/thresholds/internal/equation"
	"github.com/georgeberry/thresholds/internal/logging"
	"github.com/georgeberry/thresholds/internal/metrics"
	"github.com/georgeberry/thresholds/internal/population"
	"github.com/georgeberry/thresholds/internal/record"
	"github.com/georgeberry/thresholds/internal/store"
	"github.com/georgeberry/thresholds/internal/topology"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// graphStream is the PCG stream used for a topology shared by every
// replicate. Replicate streams are the replicate indexes, so it cannot
// collide with them for any realistic batch size.
const graphStream = 1<<64 - 1

// runNamespace scopes run IDs derived with uuid.NewSHA1.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/georgeberry/thresholds/runs"))

// runID names replicate rep of sc. Everything that shapes the records goes
// into the name, so re-running a scenario reproduces its IDs.
func runID(sc *Scenario, identifier string, params cascade.Params, rep int) string {
	key := fmt.Sprintf("%s/%s/%s/%t/%g/%g/%v/%d/%d",
		identifier, sc.Model, sc.GraphFile, sc.RegenerateGraph,
		params.ActivationProb, params.SeedFraction, sc.Seeds, sc.Seed, rep)
	return uuid.NewSHA1(runNamespace, []byte(key)).String()
}

// Runner executes scenarios and hands every finished run to a sink.
type Runner struct {
	sink       store.Sink
	logger     *slog.Logger
	runLog     *logging.RunLogger
	metrics    *metrics.Registry
	visits     *VisitLog
	workers    int
	replicates int

	// Sinks are not required to be safe for concurrent use.
	sinkMu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the operational logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithRunLogger writes a JSONL line per finished run.
func WithRunLogger(rl *logging.RunLogger) Option {
	return func(r *Runner) { r.runLog = rl }
}

// WithMetrics records run metrics into reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(r *Runner) { r.metrics = reg }
}

// WithVisitLog records every node visit of every run into vl.
func WithVisitLog(vl *VisitLog) Option {
	return func(r *Runner) { r.visits = vl }
}

// WithDefaults sets the worker and replicate counts used when a scenario
// leaves them at zero.
func WithDefaults(workers, replicates int) Option {
	return func(r *Runner) {
		if workers > 0 {
			r.workers = workers
		}
		if replicates > 0 {
			r.replicates = replicates
		}
	}
}

// NewRunner creates a Runner writing to sink. sink may be nil, in which
// case runs are only summarized.
func NewRunner(sink store.Sink, opts ...Option) *Runner {
	r := &Runner{
		sink:       sink,
		logger:     logging.Discard(),
		workers:    constants.DefaultWorkers,
		replicates: constants.DefaultReplicates,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Batch summarizes every replicate of a scenario.
type Batch struct {
	Scenario   string             `json:"scenario,omitempty"`
	Identifier string             `json:"identifier"`
	Model      cascade.Model      `json:"model"`
	Runs       []store.RunSummary `json:"runs"`

	MeanActivated     float64 `json:"mean_activated"`
	MeanObservedShare float64 `json:"mean_observed_share"`
	SDObservedShare   float64 `json:"sd_observed_share"`
	Stalled           int     `json:"stalled"`
	Converged         int     `json:"converged"`

	Duration time.Duration `json:"duration_ns"`
}

// Run executes every replicate of sc. Replicates run concurrently up to the
// worker limit; each draws from its own PCG stream keyed by (seed,
// replicate), so results do not depend on the worker count. The first
// failing replicate cancels the rest.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*Batch, error) {
	if err := sc.Resolve(); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	replicates := sc.Replicates
	if replicates == 0 {
		replicates = r.replicates
	}
	workers := sc.Workers
	if workers == 0 {
		workers = r.workers
	}

	shared := sc.graph
	if shared == nil && !sc.RegenerateGraph {
		g, err := topology.Generate(*sc.Graph, rand.New(rand.NewPCG(sc.Seed, graphStream)))
		if err != nil {
			r.metrics.RecordRunError("graph")
			return nil, err
		}
		shared = g
	}

	identifier := sc.Identifier()
	params := sc.Params()
	start := time.Now()
	r.logger.Debug("batch started",
		"scenario", sc.Name, "model", sc.Model, "replicates", replicates, "workers", workers)

	runs := make([]store.RunSummary, replicates)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for rep := range replicates {
		g.Go(func() error {
			r.metrics.WorkerStarted()
			defer r.metrics.WorkerFinished()

			run, err := r.replicate(gctx, &sc, shared, identifier, params, rep)
			if err != nil {
				return fmt.Errorf("replicate %d: %w", rep, err)
			}
			runs[rep] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := summarizeBatch(sc, identifier, runs)
	b.Duration = time.Since(start)
	r.logger.Info("batch finished",
		"scenario", sc.Name,
		"model", sc.Model,
		"runs", len(runs),
		"mean_activated", b.MeanActivated,
		"mean_observed_share", b.MeanObservedShare,
		"stalled", b.Stalled,
		"duration", b.Duration)
	r.runLog.LogRun("batch_finished", b)
	return b, nil
}

// replicate performs one run: topology, labels, seeds, cascade, records.
func (r *Runner) replicate(ctx context.Context, sc *Scenario, shared *topology.Graph, identifier string, params cascade.Params, rep int) (store.RunSummary, error) {
	rng := rand.New(rand.NewPCG(sc.Seed, uint64(rep)))
	run := store.RunSummary{
		ID:             runID(sc, identifier, params, rep),
		Scenario:       sc.Name,
		Identifier:     identifier,
		Model:          string(sc.Model),
		Graph:          sc.graphName(),
		Replicate:      rep,
		Seed:           sc.Seed,
		ActivationProb: params.ActivationProb,
		SeedFraction:   params.SeedFraction,
		StartedAt:      time.Now().UTC(),
	}

	g := shared
	if g == nil {
		var err error
		if g, err = topology.Generate(*sc.Graph, rng); err != nil {
			r.metrics.RecordRunError("graph")
			return run, err
		}
	}

	pop, err := label(g, sc.Equation, rng)
	if err != nil {
		r.metrics.RecordRunError("assign")
		return run, err
	}
	if err := pop.Seed(sc.Seeds...); err != nil {
		r.metrics.RecordRunError("assign")
		return run, err
	}

	r.logger.Debug("run started", "run_id", run.ID, "replicate", rep, "graph", g)

	var obs cascade.VisitObserver
	if r.visits != nil {
		obs = r.visits.Observer(run.ID)
	}
	res, err := cascade.Run(ctx, sc.Model, pop, params, rng, obs)
	if err != nil {
		r.metrics.RecordRunError("run")
		return run, err
	}

	records := record.Emit(run.ID, pop, sc.Model)
	sum := record.Summarize(records)
	run.Nodes = res.Nodes
	run.Edges = g.EdgeCount()
	run.Seeds = res.Seeds
	run.Activated = res.Activated
	run.Observed = sum.Observed
	run.Unobserved = sum.Unobserved
	run.Visits = res.Visits
	run.Epochs = res.Epochs
	run.Stalled = res.Stalled
	run.Duration = time.Since(run.StartedAt)

	if err := r.write(ctx, run, records); err != nil {
		r.metrics.RecordRunError("sink")
		return run, err
	}

	r.metrics.RecordRun(run.Model, outcome(res), run.Duration, res.Visits,
		fraction(res.Activated, res.Nodes), sum.ObservedShare())
	r.metrics.RecordRecordsWritten(len(records))
	r.logger.Debug("run finished",
		"run_id", run.ID,
		"replicate", rep,
		"activated", run.Activated,
		"observed", run.Observed,
		"stalled", run.Stalled,
		"duration", run.Duration)
	r.runLog.LogRun("run_finished", run)
	return run, nil
}

func (r *Runner) write(ctx context.Context, run store.RunSummary, records []record.Record) error {
	if r.sink == nil {
		return nil
	}
	r.sinkMu.Lock()
	defer r.sinkMu.Unlock()
	if err := r.sink.WriteRun(ctx, run, records); err != nil {
		return fmt.Errorf("writing run %s: %w", run.ID, err)
	}
	return nil
}

// label draws thresholds and covariates when an equation is given.
func label(g *topology.Graph, eq equation.Equation, rng *rand.Rand) (*population.Population, error) {
	if eq == nil {
		return population.Unlabeled(g), nil
	}
	draws, err := equation.Assign(g.Len(), eq, rng)
	if err != nil {
		return nil, err
	}
	return population.Label(g, draws)
}

func outcome(res cascade.Result) string {
	switch {
	case res.Converged():
		return metrics.OutcomeConverged
	case res.Stalled:
		return metrics.OutcomeStalled
	}
	return metrics.OutcomePartial
}

func fraction(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func summarizeBatch(sc Scenario, identifier string, runs []store.RunSummary) *Batch {
	b := &Batch{
		Scenario:   sc.Name,
		Identifier: identifier,
		Model:      sc.Model,
		Runs:       runs,
	}
	activated := make([]float64, len(runs))
	shares := make([]float64, 0, len(runs))
	for i, run := range runs {
		activated[i] = float64(run.Activated)
		if n := run.Observed + run.Unobserved; n > 0 {
			shares = append(shares, float64(run.Observed)/float64(n))
		}
		if run.Stalled {
			b.Stalled++
		}
		if run.Activated == run.Nodes {
			b.Converged++
		}
	}
	b.MeanActivated = stat.Mean(activated, nil)
	if len(shares) > 1 {
		b.MeanObservedShare, b.SDObservedShare = stat.MeanStdDev(shares, nil)
	} else if len(shares) == 1 {
		b.MeanObservedShare = shares[0]
	}
	return b
}
