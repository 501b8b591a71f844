package topology

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// ReadEdgeList parses whitespace separated "u v" lines. Blank lines and
// lines starting with '#' are skipped. A line holding a single ID declares
// an isolated node. Tokens after the second are ignored, so weighted edge
// lists load unchanged.
func ReadEdgeList(r io.Reader) (*Graph, error) {
	b := newBuilder()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		u, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edge list line %d: bad node id %q: %w", line, fields[0], err)
		}
		if len(fields) == 1 {
			b.node(u)
			continue
		}
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edge list line %d: bad node id %q: %w", line, fields[1], err)
		}
		b.edge(u, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading edge list: %w", err)
	}
	return b.build(), nil
}

// WriteEdgeList writes one "u v" line per edge using external IDs.
// Isolated nodes are written as single-ID lines so the graph round-trips.
func WriteEdgeList(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	for i := range g.Len() {
		if g.Degree(i) == 0 {
			if _, err := fmt.Fprintf(bw, "%d\n", g.ID(i)); err != nil {
				return err
			}
		}
	}
	for _, e := range g.Edges() {
		if _, err := fmt.Fprintf(bw, "%d %d\n", g.ID(e[0]), g.ID(e[1])); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadDOT parses an undirected DOT graph. Node IDs are assigned by the DOT
// decoder in order of first appearance.
func ReadDOT(data []byte) (*Graph, error) {
	g := simple.NewUndirectedGraph()
	if err := dot.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("decoding dot: %w", err)
	}
	return FromUndirected(g), nil
}

// WriteDOT encodes g as an undirected DOT graph named name.
func WriteDOT(w io.Writer, g *Graph, name string) error {
	sg := simple.NewUndirectedGraph()
	for i := range g.Len() {
		sg.AddNode(simple.Node(g.ID(i)))
	}
	for _, e := range g.Edges() {
		sg.SetEdge(simple.Edge{F: simple.Node(g.ID(e[0])), T: simple.Node(g.ID(e[1]))})
	}
	data, err := dot.Marshal(sg, name, "", "\t")
	if err != nil {
		return fmt.Errorf("encoding dot: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// isDOT reports whether path names a DOT file.
func isDOT(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".gv":
		return true
	}
	return false
}

// LoadFile reads a graph from path. Files ending in .dot or .gv are decoded
// as DOT; anything else is read as an edge list.
func LoadFile(path string) (*Graph, error) {
	if isDOT(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading graph file: %w", err)
		}
		return ReadDOT(data)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}
	defer f.Close()
	return ReadEdgeList(f)
}

// SaveFile writes g to path, choosing the format the same way LoadFile does.
func SaveFile(path string, g *Graph) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating graph file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if isDOT(path) {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return WriteDOT(f, g, name)
	}
	return WriteEdgeList(f, g)
}
