package topology

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/graph/graphs/gen"
	"gonum.org/v1/gonum/graph/simple"
)

// ErrUnknownGenerator is returned when a Spec names no known generator.
var ErrUnknownGenerator = errors.New("unknown graph generator")

// Kind names a graph generator.
type Kind string

const (
	KindWattsStrogatz   Kind = "watts-strogatz"
	KindPowerlawCluster Kind = "powerlaw-cluster"
	KindBarabasiAlbert  Kind = "barabasi-albert"
	KindErdosRenyi      Kind = "erdos-renyi"
	KindCycle           Kind = "cycle"
	KindStar            Kind = "star"
	KindComplete        Kind = "complete"
	KindPath            Kind = "path"
)

// Kinds lists every generator in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindWattsStrogatz, KindPowerlawCluster, KindBarabasiAlbert, KindErdosRenyi,
		KindCycle, KindStar, KindComplete, KindPath,
	}
}

// ShortName returns the abbreviation used in run identifiers.
func (k Kind) ShortName() string {
	switch k {
	case KindWattsStrogatz:
		return "ws"
	case KindPowerlawCluster:
		return "plc"
	case KindBarabasiAlbert:
		return "ba"
	case KindErdosRenyi:
		return "er"
	default:
		return string(k)
	}
}

// Spec describes a generated graph.
type Spec struct {
	Kind       Kind    `yaml:"kind" json:"kind" validate:"required"`
	Nodes      int     `yaml:"nodes" json:"nodes" validate:"gte=1"`
	MeanDegree int     `yaml:"mean_degree,omitempty" json:"mean_degree,omitempty" validate:"gte=0"`
	Prob       float64 `yaml:"prob,omitempty" json:"prob,omitempty" validate:"gte=0,lte=1"`
}

// Params returns the values identifying this graph in a run identifier:
// mean degree, size, generator and probability.
func (s Spec) Params() []any {
	return []any{s.MeanDegree, s.Nodes, s.Kind.ShortName(), s.Prob}
}

// ParseKind parses a generator name. Case is ignored and underscores are
// accepted in place of hyphens.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGenerator, s)
}

// Generate builds the graph described by spec. Random generators draw from
// rng so the same seed always yields the same graph.
func Generate(spec Spec, rng *rand.Rand) (*Graph, error) {
	if spec.Nodes < 1 {
		return nil, fmt.Errorf("generating %s graph: nodes must be positive, got %d", spec.Kind, spec.Nodes)
	}
	n := spec.Nodes
	last := int64(n - 1)
	g := simple.NewUndirectedGraph()

	var err error
	switch spec.Kind {
	case KindWattsStrogatz:
		d := spec.MeanDegree / 2
		if spec.Prob == 0 {
			err = ringLattice(g, n, d)
		} else {
			err = gen.SmallWorldsBB(g, n, d, spec.Prob, rng)
		}
	case KindPowerlawCluster:
		err = gen.TunableClusteringScaleFree(g, n, max(spec.MeanDegree/2, 1), spec.Prob, rng)
	case KindBarabasiAlbert:
		err = gen.PreferentialAttachment(g, n, max(spec.MeanDegree/2, 1), rng)
	case KindErdosRenyi:
		p := spec.Prob
		if spec.MeanDegree > 0 && n > 1 {
			p = min(float64(spec.MeanDegree)/float64(n-1), 1)
		}
		err = gen.Gnp(g, n, p, rng)
	case KindCycle:
		if n < 3 {
			return nil, fmt.Errorf("generating cycle: need at least 3 nodes, got %d", n)
		}
		gen.Cycle(g, gen.IDRange{First: 0, Last: last})
	case KindStar:
		gen.Star(g, 0, gen.IDRange{First: 1, Last: last})
	case KindComplete:
		gen.Complete(g, gen.IDRange{First: 0, Last: last})
	case KindPath:
		gen.Path(g, gen.IDRange{First: 0, Last: last})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, spec.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("generating %s graph: %w", spec.Kind, err)
	}
	return FromUndirected(g), nil
}

// ringLattice connects every node to its d nearest neighbors on each side.
// SmallWorldsBB adds no edges at all when the rewiring probability is zero.
func ringLattice(g *simple.UndirectedGraph, n, d int) error {
	if d < 1 || d > (n-1)/2 {
		return fmt.Errorf("bad degree: d=%d", d)
	}
	for i := range n {
		g.AddNode(simple.Node(i))
	}
	for i := range n {
		for j := 1; j <= d; j++ {
			g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node((i + j) % n)})
		}
	}
	return nil
}
