package cascade

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"

	"github.com/georgeberry/thresholds/internal/equation"
	"github.com/georgeberry/thresholds/internal/population"
	"github.com/georgeberry/thresholds/internal/topology"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// uniform labels every node of g with the same threshold.
func uniform(t *testing.T, g *topology.Graph, threshold float64) *population.Population {
	t.Helper()
	draws := make([]equation.Draw, g.Len())
	for i := range draws {
		draws[i] = equation.Draw{Threshold: threshold, Values: map[string]float64{}}
	}
	p, err := population.Label(g, draws)
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	return p
}

func generate(t *testing.T, spec topology.Spec, seed uint64) *topology.Graph {
	t.Helper()
	g, err := topology.Generate(spec, newRand(seed))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return g
}

func seed(t *testing.T, p *population.Population, ids ...int64) {
	t.Helper()
	if err := p.Seed(ids...); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
}

func TestParseModel(t *testing.T) {
	for _, m := range Models() {
		got, err := ParseModel(string(m))
		if err != nil || got != m {
			t.Errorf("ParseModel(%q) = %q, %v", m, got, err)
		}
	}
	if got, _ := ParseModel(" PULL "); got != ModelPull {
		t.Errorf("ParseModel(PULL) = %q", got)
	}
	if _, err := ParseModel("sir"); err == nil {
		t.Error("ParseModel(sir) accepted")
	}
}

func TestRun_CycleScenario(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindCycle, Nodes: 4}, 0)

	for s := range uint64(25) {
		p := uniform(t, g, 1)
		seed(t, p, 0)

		res, err := Run(context.Background(), ModelInteger, p, Params{}, newRand(s), nil)
		if err != nil {
			t.Fatalf("seed %d: Run() error = %v", s, err)
		}
		if !res.Converged() || res.Stalled {
			t.Fatalf("seed %d: result = %+v, want all active", s, res)
		}

		n0 := p.Node(0)
		if !n0.Seed || n0.ActivationOrder != 0 || n0.After != nil {
			t.Errorf("seed %d: seed node state = %+v", s, n0)
		}
		for _, i := range []int{1, 3} {
			n := p.Node(i)
			if n.After == nil || n.After.Active != 1 || n.Before != nil {
				t.Errorf("seed %d: node %d before=%v after=%v, want before nil after 1", s, i, n.Before, n.After)
			}
		}
		n2 := p.Node(2)
		if n2.After == nil || (n2.After.Active != 1 && n2.After.Active != 2) {
			t.Errorf("seed %d: node 2 after = %v, want 1 or 2", s, n2.After)
		}
		if n2.ActivationOrder < min(p.Node(1).ActivationOrder, p.Node(3).ActivationOrder) {
			t.Errorf("seed %d: node 2 activated before both of its neighbors", s)
		}

		orders := []int{p.Node(1).ActivationOrder, p.Node(2).ActivationOrder, p.Node(3).ActivationOrder}
		slices.Sort(orders)
		if !slices.Equal(orders, []int{1, 2, 3}) {
			t.Errorf("seed %d: activation orders = %v", s, orders)
		}
	}
}

func TestRun_FractionalStarScenario(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindStar, Nodes: 6}, 0)
	draws := make([]equation.Draw, g.Len())
	for i := range draws {
		draws[i].Threshold = 0.5
	}
	draws[0].Threshold = 0
	p, err := population.Label(g, draws)
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	seed(t, p, 0)

	res, err := Run(context.Background(), ModelFractional, p, Params{}, newRand(8), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Converged() {
		t.Fatalf("result = %+v, want all active", res)
	}
	if res.Visits != 5 {
		t.Errorf("Visits = %d, want one per leaf", res.Visits)
	}
	for i := 1; i < 6; i++ {
		n := p.Node(i)
		if n.After == nil || n.After.Value != 1.0 || n.After.Active != 1 || n.Before != nil {
			t.Errorf("leaf %d before=%v after=%v", i, n.Before, n.After)
		}
	}
}

func TestRun_ZeroThresholdsActivateConnectedGraph(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindWattsStrogatz, Nodes: 300, MeanDegree: 6, Prob: 0.1}, 2)
	p := uniform(t, g, 0)
	seed(t, p, 0)

	res, err := Run(context.Background(), ModelInteger, p, Params{}, newRand(2), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Converged() || res.Stalled {
		t.Errorf("result = %+v, want every node active", res)
	}
	if p.LastOrder() != g.Len()-1 {
		t.Errorf("LastOrder() = %d, want %d", p.LastOrder(), g.Len()-1)
	}
}

func TestRun_StallsAfterMoreThanNIdleVisits(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindPath, Nodes: 5}, 0)
	p := uniform(t, g, 2)
	seed(t, p, 0)

	res, err := Run(context.Background(), ModelInteger, p, Params{}, newRand(1), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Stalled {
		t.Error("Stalled = false, want true")
	}
	if res.Visits != g.Len()+1 {
		t.Errorf("Visits = %d, want %d", res.Visits, g.Len()+1)
	}
	if res.Activated != 1 || res.Converged() {
		t.Errorf("Activated = %d, want only the seed", res.Activated)
	}
	for i := 1; i < 5; i++ {
		if p.Node(i).Visits == 0 {
			t.Errorf("node %d never visited before the stall", i)
		}
	}
}

func TestRun_IsolatedNodes(t *testing.T) {
	g := topology.FromEdges([]int64{0, 1, 2}, [][2]int64{{0, 1}})

	t.Run("fractional never activates isolated node", func(t *testing.T) {
		p := uniform(t, g, 0)
		res, err := Run(context.Background(), ModelFractional, p, Params{}, newRand(3), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !res.Stalled || res.Activated != 2 {
			t.Errorf("result = %+v, want stall with 2 active", res)
		}
		iso := p.Node(2)
		if iso.Activated || iso.Before == nil || iso.Before.Value != 0 {
			t.Errorf("isolated node = %+v", iso)
		}
	})

	t.Run("integer activates isolated node at zero threshold", func(t *testing.T) {
		p := uniform(t, g, 0)
		res, err := Run(context.Background(), ModelInteger, p, Params{}, newRand(3), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !res.Converged() {
			t.Errorf("result = %+v, want all active", res)
		}
		if a := p.Node(2).After; a == nil || a.Active != 0 {
			t.Errorf("isolated after = %v, want zero exposure", a)
		}
	})
}

func TestRun_Push(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindPath, Nodes: 6}, 0)

	t.Run("certain transmission", func(t *testing.T) {
		p := population.Unlabeled(g)
		seed(t, p, 0)
		res, err := Run(context.Background(), ModelPush, p, Params{ActivationProb: 1}, newRand(1), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !res.Converged() {
			t.Fatalf("result = %+v", res)
		}
		if res.Epochs != 6 {
			t.Errorf("Epochs = %d, want 6", res.Epochs)
		}
		for i := 1; i < 6; i++ {
			n := p.Node(i)
			if n.ActivationOrder != i || n.CriticalExposure != 1 || n.After.Active != 1 {
				t.Errorf("node %d = %+v", i, n)
			}
		}
	})

	t.Run("no transmission", func(t *testing.T) {
		p := population.Unlabeled(g)
		seed(t, p, 0)
		res, err := Run(context.Background(), ModelPush, p, Params{ActivationProb: 0}, newRand(1), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Activated != 1 || res.Epochs != 1 || res.Visits != 1 {
			t.Errorf("result = %+v", res)
		}
		n := p.Node(1)
		if n.CriticalExposure != 1 || n.Before == nil || n.Before.Active != 1 {
			t.Errorf("exposed neighbor = %+v", n)
		}
	})
}

func TestRun_Pull(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindComplete, Nodes: 5}, 0)

	t.Run("certain transmission", func(t *testing.T) {
		p := population.Unlabeled(g)
		seed(t, p, 0)
		res, err := Run(context.Background(), ModelPull, p, Params{ActivationProb: 1}, newRand(6), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !res.Converged() || res.Epochs != 1 {
			t.Errorf("result = %+v, want all active in one epoch", res)
		}
		for i := 1; i < 5; i++ {
			n := p.Node(i)
			if n.CriticalExposure != 1 {
				t.Errorf("node %d critical = %d, want 1", i, n.CriticalExposure)
			}
			if n.After.Active != n.ActivationOrder {
				t.Errorf("node %d after = %d, order %d", i, n.After.Active, n.ActivationOrder)
			}
		}
	})

	t.Run("no transmission", func(t *testing.T) {
		p := population.Unlabeled(g)
		seed(t, p, 0, 1)
		res, err := Run(context.Background(), ModelPull, p, Params{ActivationProb: 0}, newRand(6), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Activated != 2 || res.Epochs != 1 || res.Visits != 3 {
			t.Errorf("result = %+v", res)
		}
		for i := 2; i < 5; i++ {
			n := p.Node(i)
			if n.Before == nil || n.Before.Active != 2 || n.CriticalExposure != 2 {
				t.Errorf("node %d = %+v", i, n)
			}
		}
	})
}

func TestRun_SeedFraction(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindPath, Nodes: 50}, 0)
	p := population.Unlabeled(g)

	res, err := Run(context.Background(), ModelPush, p, Params{ActivationProb: 0, SeedFraction: 0.1}, newRand(1), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Seeds != 5 || res.Activated != 5 {
		t.Errorf("result = %+v, want 5 seeds", res)
	}
}

func TestRun_Errors(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindPath, Nodes: 3}, 0)

	_, err := Run(context.Background(), ModelPull, population.Unlabeled(g), Params{ActivationProb: 1.2}, newRand(1), nil)
	if !errors.Is(err, ErrInvalidProbability) {
		t.Errorf("p=1.2 error = %v, want ErrInvalidProbability", err)
	}
	_, err = Run(context.Background(), ModelPush, population.Unlabeled(g), Params{SeedFraction: -0.1}, newRand(1), nil)
	if !errors.Is(err, ErrInvalidProbability) {
		t.Errorf("s=-0.1 error = %v, want ErrInvalidProbability", err)
	}
	if _, err := Run(context.Background(), ModelInteger, population.Unlabeled(g), Params{}, newRand(1), nil); err == nil {
		t.Error("integer model accepted an unlabeled population")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, ModelInteger, uniform(t, g, 1), Params{}, newRand(1), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled run error = %v, want context.Canceled", err)
	}
}

func TestRun_ObserverSeesEveryVisit(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindCycle, Nodes: 10}, 0)
	p := uniform(t, g, 1)
	seed(t, p, 0)

	var visits []Visit
	res, err := Run(context.Background(), ModelInteger, p, Params{}, newRand(4), VisitFunc(func(v Visit) {
		visits = append(visits, v)
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(visits) != res.Visits {
		t.Fatalf("observed %d visits, result reports %d", len(visits), res.Visits)
	}
	activations := 0
	for i, v := range visits {
		if v.Step != i+1 {
			t.Errorf("visit %d has step %d", i, v.Step)
		}
		if v.Activated {
			activations++
		}
	}
	if activations != res.Activated-res.Seeds {
		t.Errorf("observed %d activations, result reports %d", activations, res.Activated-res.Seeds)
	}
}

func TestRun_Deterministic(t *testing.T) {
	g := generate(t, topology.Spec{Kind: topology.KindPowerlawCluster, Nodes: 200, MeanDegree: 6, Prob: 0.3}, 5)
	eq := equation.Equation{
		"constant": {Coefficient: equation.Float(2)},
		"epsilon":  {SD: equation.Float(1)},
	}

	for _, model := range Models() {
		run := func() []population.NodeState {
			rng := newRand(77)
			var p *population.Population
			if model.UsesThresholds() {
				draws, err := equation.Assign(g.Len(), eq, rng)
				if err != nil {
					t.Fatalf("Assign() error = %v", err)
				}
				if p, err = population.Label(g, draws); err != nil {
					t.Fatalf("Label() error = %v", err)
				}
			} else {
				p = population.Unlabeled(g)
			}
			if model == ModelFractional {
				for i := range p.Len() {
					p.Node(i).Threshold /= 10
				}
			}
			if _, err := Run(context.Background(), model, p, Params{ActivationProb: 0.3, SeedFraction: 0.02}, rng, nil); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			return p.Nodes()
		}
		if a, b := run(), run(); !reflect.DeepEqual(a, b) {
			t.Errorf("%s: identical seeds produced different node states", model)
		}
	}
}
