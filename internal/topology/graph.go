// Package topology holds the static network a simulation runs on.
//
// A Graph is an immutable undirected simple graph. Nodes are addressed by a
// dense index 0..N-1 assigned in ascending order of their external IDs, so
// two graphs with the same node and edge sets always index identically. The
// adjacency lists are shared read-only by every replicate that uses the graph.
package topology

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph"
)

// Graph is an immutable undirected simple graph.
type Graph struct {
	ids   []int64
	index map[int64]int
	adj   [][]int
	edges int
}

// FromUndirected copies a gonum undirected graph into a Graph.
// Self loops are dropped.
func FromUndirected(g graph.Undirected) *Graph {
	nodes := graph.NodesOf(g.Nodes())
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	slices.Sort(ids)

	index := make(map[int64]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	adj := make([][]int, len(ids))
	edges := 0
	for i, id := range ids {
		nbrs := graph.NodesOf(g.From(id))
		list := make([]int, 0, len(nbrs))
		for _, nb := range nbrs {
			if nb.ID() == id {
				continue
			}
			list = append(list, index[nb.ID()])
		}
		slices.Sort(list)
		adj[i] = list
		edges += len(list)
	}

	return &Graph{ids: ids, index: index, adj: adj, edges: edges / 2}
}

// FromEdges builds a Graph from an explicit node list and edge list.
// Edges may name nodes missing from ids; such nodes are added. Duplicate
// edges and self loops are ignored.
func FromEdges(ids []int64, edges [][2]int64) *Graph {
	b := newBuilder()
	for _, id := range ids {
		b.node(id)
	}
	for _, e := range edges {
		b.edge(e[0], e[1])
	}
	return b.build()
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.ids) }

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int { return g.edges }

// ID returns the external ID of the node at index i.
func (g *Graph) ID(i int) int64 { return g.ids[i] }

// Index returns the dense index of the node with the given external ID.
func (g *Graph) Index(id int64) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Neighbors returns the sorted neighbor indices of node i.
// The returned slice is shared and must not be modified.
func (g *Graph) Neighbors(i int) []int { return g.adj[i] }

// Degree returns the number of neighbors of node i.
func (g *Graph) Degree(i int) int { return len(g.adj[i]) }

// DegreeCentrality returns the degree of node i normalized by N-1.
// Graphs of one node report 1, matching the networkx convention.
func (g *Graph) DegreeCentrality(i int) float64 {
	if len(g.ids) <= 1 {
		return 1
	}
	return float64(len(g.adj[i])) / float64(len(g.ids)-1)
}

// MeanDegree returns the average node degree.
func (g *Graph) MeanDegree() float64 {
	if len(g.ids) == 0 {
		return 0
	}
	return 2 * float64(g.edges) / float64(len(g.ids))
}

// Edges returns every edge once as an index pair with the lower index first.
func (g *Graph) Edges() [][2]int {
	out := make([][2]int, 0, g.edges)
	for u, nbrs := range g.adj {
		for _, v := range nbrs {
			if u < v {
				out = append(out, [2]int{u, v})
			}
		}
	}
	return out
}

// String returns a short summary of the graph.
func (g *Graph) String() string {
	return fmt.Sprintf("Graph{nodes:%d, edges:%d}", g.Len(), g.EdgeCount())
}

// builder accumulates nodes and edges keyed by external ID.
type builder struct {
	nodes map[int64]struct{}
	adj   map[int64]map[int64]struct{}
}

func newBuilder() *builder {
	return &builder{
		nodes: make(map[int64]struct{}),
		adj:   make(map[int64]map[int64]struct{}),
	}
}

func (b *builder) node(id int64) {
	b.nodes[id] = struct{}{}
}

func (b *builder) edge(u, v int64) {
	b.node(u)
	b.node(v)
	if u == v {
		return
	}
	if b.adj[u] == nil {
		b.adj[u] = make(map[int64]struct{})
	}
	if b.adj[v] == nil {
		b.adj[v] = make(map[int64]struct{})
	}
	b.adj[u][v] = struct{}{}
	b.adj[v][u] = struct{}{}
}

func (b *builder) build() *Graph {
	ids := make([]int64, 0, len(b.nodes))
	for id := range b.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	index := make(map[int64]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	adj := make([][]int, len(ids))
	edges := 0
	for i, id := range ids {
		list := make([]int, 0, len(b.adj[id]))
		for nb := range b.adj[id] {
			list = append(list, index[nb])
		}
		slices.Sort(list)
		adj[i] = list
		edges += len(list)
	}
	return &Graph{ids: ids, index: index, adj: adj, edges: edges / 2}
}
