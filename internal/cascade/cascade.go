// Package cascade runs activation processes over a population.
//
// Four models are supported. The integer and fractional threshold models
// visit inactive nodes asynchronously in random order and activate a node
// once its active neighbor count (or fraction) reaches its threshold. The
// push and pull models are independent cascades in which every exposure to
// an active neighbor is a Bernoulli trial with a shared probability.
//
// A run is strictly sequential. Replicates get their own Population and
// random stream and may run concurrently.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/georgeberry/thresholds/internal/population"
)

// ErrInvalidProbability is returned when an activation probability or seed
// fraction lies outside [0, 1].
var ErrInvalidProbability = errors.New("probability must be in [0, 1]")

// Model selects the activation process.
type Model string

const (
	ModelInteger    Model = "integer"
	ModelFractional Model = "fractional"
	ModelPush       Model = "push"
	ModelPull       Model = "pull"
)

// Models lists every model in a stable order.
func Models() []Model {
	return []Model{ModelInteger, ModelFractional, ModelPush, ModelPull}
}

// ParseModel parses a model name, ignoring case.
func ParseModel(s string) (Model, error) {
	m := Model(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Models() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown model %q (want integer, fractional, push or pull)", s)
}

// UsesThresholds reports whether the model compares exposure to a drawn
// threshold. The independent cascade models do not.
func (m Model) UsesThresholds() bool {
	return m == ModelInteger || m == ModelFractional
}

// Params holds the model parameters shared by a batch of runs.
type Params struct {
	// ActivationProb is the per-trial success probability of the push and
	// pull models.
	ActivationProb float64
	// SeedFraction of nodes, rounded to the nearest integer count, is
	// seeded at random before the first visit.
	SeedFraction float64
}

// Validate checks that both probabilities lie in [0, 1].
func (p Params) Validate() error {
	if !inUnit(p.ActivationProb) {
		return fmt.Errorf("activation probability %v: %w", p.ActivationProb, ErrInvalidProbability)
	}
	if !inUnit(p.SeedFraction) {
		return fmt.Errorf("seed fraction %v: %w", p.SeedFraction, ErrInvalidProbability)
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Result summarizes a finished run.
type Result struct {
	Model Model `json:"model"`
	Nodes int   `json:"nodes"`
	Seeds int   `json:"seeds"`
	// Activated counts active nodes at the end of the run, seeds included.
	Activated int `json:"activated"`
	// Visits counts node evaluations that could have activated a node.
	Visits int `json:"visits"`
	// Epochs counts visit sequences built (threshold models) or epochs run
	// (independent cascades).
	Epochs int `json:"epochs"`
	// Stalled is set when a threshold run hit the stall limit with nodes
	// still inactive.
	Stalled bool `json:"stalled"`
}

// Converged reports whether every node ended active.
func (r Result) Converged() bool { return r.Activated == r.Nodes }

// Visit describes one evaluation of an inactive node.
type Visit struct {
	Step      int     `json:"step"`
	Epoch     int     `json:"epoch"`
	Node      int64   `json:"node"`
	Exposure  float64 `json:"exposure"`
	Active    int     `json:"active"`
	Activated bool    `json:"activated"`
}

// VisitObserver receives every visit as it happens. Observers must not
// retain the population or mutate node state.
type VisitObserver interface {
	ObserveVisit(Visit)
}

// VisitFunc adapts a function to a VisitObserver.
type VisitFunc func(Visit)

// ObserveVisit calls f(v).
func (f VisitFunc) ObserveVisit(v Visit) { f(v) }

// Run executes model over pop, drawing all randomness from rng. Explicit
// seeds must be applied to pop before calling Run; params.SeedFraction adds
// random seeds on top of them. obs may be nil.
//
// ctx is checked once per visit sequence or epoch. On cancellation Run
// returns the partial result together with the context error.
func Run(ctx context.Context, model Model, pop *population.Population, params Params, rng *rand.Rand, obs VisitObserver) (Result, error) {
	if err := params.Validate(); err != nil {
		return Result{}, err
	}
	if model.UsesThresholds() && !pop.HasThresholds() {
		return Result{}, fmt.Errorf("%s model needs a population labeled with thresholds", model)
	}
	if params.SeedFraction > 0 {
		if _, err := pop.SeedRandom(params.SeedFraction, rng); err != nil {
			return Result{}, fmt.Errorf("seeding: %w", err)
		}
	}

	r := runner{pop: pop, rng: rng, obs: obs}
	r.res = Result{Model: model, Nodes: pop.Len(), Seeds: pop.SeedCount()}

	var err error
	switch model {
	case ModelInteger:
		err = r.threshold(ctx, false)
	case ModelFractional:
		err = r.threshold(ctx, true)
	case ModelPush:
		err = r.push(ctx, params.ActivationProb)
	case ModelPull:
		err = r.pull(ctx, params.ActivationProb)
	default:
		return Result{}, fmt.Errorf("unknown model %q", model)
	}
	r.res.Activated = pop.ActivatedCount()
	return r.res, err
}

// runner carries the state shared by the engines during one run.
type runner struct {
	pop *population.Population
	rng *rand.Rand
	obs VisitObserver
	res Result
}

// visit records one evaluation of node i and notifies the observer.
func (r *runner) visit(i int, exp population.Exposure, activated bool) {
	r.res.Visits++
	r.pop.Node(i).Visits++
	if r.obs == nil {
		return
	}
	r.obs.ObserveVisit(Visit{
		Step:      r.res.Visits,
		Epoch:     r.res.Epochs,
		Node:      r.pop.Node(i).ID,
		Exposure:  exp.Value,
		Active:    exp.Active,
		Activated: activated,
	})
}

func checkContext(ctx context.Context, res Result) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted after %d visits: %w", res.Visits, err)
	}
	return nil
}
