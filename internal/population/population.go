// Package population holds the per-run mutable state of every node.
//
// A Population pairs an immutable topology.Graph with one NodeState per
// node. The graph is shared by all replicates; the states belong to exactly
// one run and are mutated only by the cascade engines.
package population

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/georgeberry/thresholds/internal/equation"
	"github.com/georgeberry/thresholds/internal/sequence"
	"github.com/georgeberry/thresholds/internal/topology"
)

// ErrDrawCountMismatch is returned when the number of threshold draws does
// not match the number of nodes being labeled.
var ErrDrawCountMismatch = errors.New("draw count does not match node count")

// Exposure is a snapshot of a node's active neighborhood. Value is the
// quantity compared against the threshold (a count or a fraction of the
// degree) and Active is the raw active neighbor count behind it.
type Exposure struct {
	Value  float64 `json:"value"`
	Active int     `json:"active"`
}

// NodeState is the mutable bookkeeping for one node during one run.
type NodeState struct {
	ID         int64
	Threshold  float64
	Covariates map[string]float64
	// Degree is the normalized degree centrality of the node.
	Degree float64

	Activated bool
	Seed      bool
	// ActivationOrder is the 1-based activation rank, 0 when the node never
	// activated through the cascade (including seeds).
	ActivationOrder int
	// Before is the latest exposure seen while the node was inactive.
	Before *Exposure
	// After is the exposure at the instant of activation.
	After *Exposure
	// CriticalExposure counts the activation trials a node faced in the
	// independent cascade models. 0 means none were recorded.
	CriticalExposure int
	Visits           int
}

// Population is the labeled node set for one run.
type Population struct {
	graph      *topology.Graph
	nodes      []NodeState
	covariates []string
	thresholds bool

	active    []int
	activated int
	order     int
}

// Label attaches one threshold draw to every node of g. draws[i] belongs to
// the node at index i, that is the i-th node in ascending ID order.
func Label(g *topology.Graph, draws []equation.Draw) (*Population, error) {
	if len(draws) != g.Len() {
		return nil, fmt.Errorf("labeling %d nodes with %d draws: %w", g.Len(), len(draws), ErrDrawCountMismatch)
	}
	p := newPopulation(g)
	p.thresholds = true

	names := make(map[string]struct{})
	for i, d := range draws {
		p.nodes[i].Threshold = d.Threshold
		p.nodes[i].Covariates = maps.Clone(d.Values)
		for name := range d.Values {
			names[name] = struct{}{}
		}
	}
	p.covariates = slices.Sorted(maps.Keys(names))
	return p, nil
}

// Unlabeled returns a population without thresholds or covariates, as used
// by the independent cascade models.
func Unlabeled(g *topology.Graph) *Population {
	return newPopulation(g)
}

func newPopulation(g *topology.Graph) *Population {
	nodes := make([]NodeState, g.Len())
	for i := range nodes {
		nodes[i] = NodeState{
			ID:     g.ID(i),
			Degree: g.DegreeCentrality(i),
		}
	}
	return &Population{
		graph:  g,
		nodes:  nodes,
		active: make([]int, g.Len()),
	}
}

// Graph returns the shared topology.
func (p *Population) Graph() *topology.Graph { return p.graph }

// Len returns the number of nodes.
func (p *Population) Len() int { return len(p.nodes) }

// Node returns the state of the node at index i. The pointer stays valid for
// the life of the population.
func (p *Population) Node(i int) *NodeState { return &p.nodes[i] }

// Nodes returns all node states in index order.
func (p *Population) Nodes() []NodeState { return p.nodes }

// CovariateNames returns the sorted union of covariate names.
func (p *Population) CovariateNames() []string { return p.covariates }

// HasThresholds reports whether the population was labeled with draws.
func (p *Population) HasThresholds() bool { return p.thresholds }

// ActiveNeighbors returns the number of active neighbors of node i.
func (p *Population) ActiveNeighbors(i int) int { return p.active[i] }

// ActivatedCount returns the number of active nodes, seeds included.
func (p *Population) ActivatedCount() int { return p.activated }

// SeedCount returns the number of seeded nodes.
func (p *Population) SeedCount() int {
	n := 0
	for i := range p.nodes {
		if p.nodes[i].Seed {
			n++
		}
	}
	return n
}

// LastOrder returns the highest activation order assigned so far.
func (p *Population) LastOrder() int { return p.order }

// Activate marks node i active with the given exposure and assigns it the
// next activation order. Activating a node twice is a contract violation.
func (p *Population) Activate(i int, after Exposure) {
	n := &p.nodes[i]
	if n.Activated {
		panic(fmt.Sprintf("population: node %d activated twice", n.ID))
	}
	p.order++
	n.Activated = true
	n.ActivationOrder = p.order
	n.After = &after
	p.markActive(i)
}

// Seed forces the nodes with the given external IDs active before the run.
// Seeds receive no activation order.
func (p *Population) Seed(ids ...int64) error {
	for _, id := range ids {
		i, ok := p.graph.Index(id)
		if !ok {
			return fmt.Errorf("seeding node %d: not in graph", id)
		}
		p.seedIndex(i)
	}
	return nil
}

// SeedRandom seeds round(frac*N) nodes chosen uniformly at random and
// returns their IDs in ascending order.
func (p *Population) SeedRandom(frac float64, rng *rand.Rand) ([]int64, error) {
	if frac < 0 || frac > 1 || math.IsNaN(frac) {
		return nil, fmt.Errorf("seed fraction must be in [0, 1], got %v", frac)
	}
	count := int(math.Round(frac * float64(len(p.nodes))))

	candidates := make([]int, len(p.nodes))
	for i := range candidates {
		candidates[i] = i
	}
	seq := sequence.New(candidates, rng)
	picked := make([]int, 0, count)
	for range count {
		i, _ := seq.Next()
		picked = append(picked, i)
	}
	slices.Sort(picked)

	ids := make([]int64, 0, count)
	for _, i := range picked {
		if p.nodes[i].Activated {
			continue
		}
		p.seedIndex(i)
		ids = append(ids, p.nodes[i].ID)
	}
	return ids, nil
}

func (p *Population) seedIndex(i int) {
	n := &p.nodes[i]
	if n.Activated {
		return
	}
	n.Activated = true
	n.Seed = true
	p.markActive(i)
}

func (p *Population) markActive(i int) {
	p.activated++
	for _, nb := range p.graph.Neighbors(i) {
		p.active[nb]++
	}
}
