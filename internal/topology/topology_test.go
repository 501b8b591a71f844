package topology

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestFromEdges_IndexesByAscendingID(t *testing.T) {
	g := FromEdges([]int64{42}, [][2]int64{{30, 10}, {10, 20}, {20, 20}, {10, 30}})

	if g.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", g.Len())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2 (duplicates and self loops dropped)", g.EdgeCount())
	}
	for i, want := range []int64{10, 20, 30, 42} {
		if g.ID(i) != want {
			t.Errorf("ID(%d) = %d, want %d", i, g.ID(i), want)
		}
	}
	i, ok := g.Index(10)
	if !ok || i != 0 {
		t.Fatalf("Index(10) = %d, %v", i, ok)
	}
	if got := g.Neighbors(0); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("Neighbors(0) = %v, want [1 2]", got)
	}
	if g.Degree(3) != 0 {
		t.Errorf("isolated node degree = %d", g.Degree(3))
	}
	if _, ok := g.Index(99); ok {
		t.Error("Index(99) reported present")
	}
}

func TestDegreeCentrality(t *testing.T) {
	star := FromEdges(nil, [][2]int64{{0, 1}, {0, 2}, {0, 3}, {0, 4}})
	if got := star.DegreeCentrality(0); got != 1 {
		t.Errorf("center centrality = %v, want 1", got)
	}
	if got := star.DegreeCentrality(1); got != 0.25 {
		t.Errorf("leaf centrality = %v, want 0.25", got)
	}

	single := FromEdges([]int64{7}, nil)
	if got := single.DegreeCentrality(0); got != 1 {
		t.Errorf("single node centrality = %v, want 1", got)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	spec := Spec{Kind: KindWattsStrogatz, Nodes: 200, MeanDegree: 6, Prob: 0.1}

	a, err := Generate(spec, newRand(3))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := Generate(spec, newRand(3))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !slices.Equal(a.Edges(), b.Edges()) {
		t.Error("same seed produced different graphs")
	}
}

func TestGenerate_Kinds(t *testing.T) {
	tests := []struct {
		name      string
		spec      Spec
		wantNodes int
		wantEdges int // -1 to skip
	}{
		{"ring lattice", Spec{Kind: KindWattsStrogatz, Nodes: 20, MeanDegree: 4}, 20, 40},
		{"small world", Spec{Kind: KindWattsStrogatz, Nodes: 100, MeanDegree: 4, Prob: 0.2}, 100, -1},
		{"powerlaw cluster", Spec{Kind: KindPowerlawCluster, Nodes: 100, MeanDegree: 4, Prob: 0.5}, 100, -1},
		{"barabasi albert", Spec{Kind: KindBarabasiAlbert, Nodes: 100, MeanDegree: 4}, 100, -1},
		{"erdos renyi", Spec{Kind: KindErdosRenyi, Nodes: 100, MeanDegree: 5}, 100, -1},
		{"cycle", Spec{Kind: KindCycle, Nodes: 4}, 4, 4},
		{"star", Spec{Kind: KindStar, Nodes: 5}, 5, 4},
		{"complete", Spec{Kind: KindComplete, Nodes: 5}, 5, 10},
		{"path", Spec{Kind: KindPath, Nodes: 5}, 5, 4},
		{"single star", Spec{Kind: KindStar, Nodes: 1}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Generate(tt.spec, newRand(1))
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if g.Len() != tt.wantNodes {
				t.Errorf("Len() = %d, want %d", g.Len(), tt.wantNodes)
			}
			if tt.wantEdges >= 0 && g.EdgeCount() != tt.wantEdges {
				t.Errorf("EdgeCount() = %d, want %d", g.EdgeCount(), tt.wantEdges)
			}
		})
	}
}

func TestGenerate_Errors(t *testing.T) {
	if _, err := Generate(Spec{Kind: "lattice", Nodes: 4}, newRand(1)); !errors.Is(err, ErrUnknownGenerator) {
		t.Errorf("unknown kind error = %v, want ErrUnknownGenerator", err)
	}
	if _, err := Generate(Spec{Kind: KindCycle, Nodes: 2}, newRand(1)); err == nil {
		t.Error("two node cycle accepted")
	}
	if _, err := Generate(Spec{Kind: KindWattsStrogatz, Nodes: 5, MeanDegree: 10}, newRand(1)); err == nil {
		t.Error("degree above N accepted")
	}
	if _, err := Generate(Spec{Kind: KindPath, Nodes: 0}, newRand(1)); err == nil {
		t.Error("empty graph accepted")
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Watts_Strogatz ")
	if err != nil || k != KindWattsStrogatz {
		t.Errorf("ParseKind() = %q, %v", k, err)
	}
	if _, err := ParseKind("hypercube"); !errors.Is(err, ErrUnknownGenerator) {
		t.Errorf("ParseKind(hypercube) error = %v", err)
	}
}

func TestEdgeList_RoundTrip(t *testing.T) {
	in := "# comment\n1 2\n2 3 0.5\n\n9\n"
	g, err := ReadEdgeList(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadEdgeList() error = %v", err)
	}
	if g.Len() != 4 || g.EdgeCount() != 2 {
		t.Fatalf("parsed %v, want 4 nodes 2 edges", g)
	}

	var buf bytes.Buffer
	if err := WriteEdgeList(&buf, g); err != nil {
		t.Fatalf("WriteEdgeList() error = %v", err)
	}
	if buf.String() != "9\n1 2\n2 3\n" {
		t.Errorf("WriteEdgeList() = %q", buf.String())
	}

	back, err := ReadEdgeList(&buf)
	if err != nil {
		t.Fatalf("re-read error = %v", err)
	}
	if !slices.Equal(back.Edges(), g.Edges()) || back.Len() != g.Len() {
		t.Error("edge list did not round trip")
	}
}

func TestReadEdgeList_BadID(t *testing.T) {
	_, err := ReadEdgeList(strings.NewReader("1 2\n3 x\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %v, want line 2 reference", err)
	}
}

func TestDOT_RoundTrip(t *testing.T) {
	g, err := Generate(Spec{Kind: KindCycle, Nodes: 6}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteDOT(&buf, g, "ring"); err != nil {
		t.Fatalf("WriteDOT() error = %v", err)
	}
	if !strings.Contains(buf.String(), "graph ring {") {
		t.Errorf("WriteDOT() output missing header:\n%s", buf.String())
	}

	back, err := ReadDOT(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadDOT() error = %v", err)
	}
	if back.Len() != 6 || back.EdgeCount() != 6 {
		t.Errorf("ReadDOT() = %v, want 6 nodes 6 edges", back)
	}
	for i := range back.Len() {
		if back.Degree(i) != 2 {
			t.Errorf("node %d degree = %d, want 2", i, back.Degree(i))
		}
	}
}

func TestLoadSaveFile(t *testing.T) {
	g, err := Generate(Spec{Kind: KindStar, Nodes: 5}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for _, name := range []string{"star.edges", "star.dot"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := SaveFile(path, g); err != nil {
				t.Fatalf("SaveFile() error = %v", err)
			}
			back, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if back.Len() != 5 || back.EdgeCount() != 4 {
				t.Errorf("LoadFile() = %v, want 5 nodes 4 edges", back)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.edges")); err == nil {
		t.Error("LoadFile() on a missing file succeeded")
	}
}
