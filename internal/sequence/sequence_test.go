package sequence

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func TestSequencer_YieldsPermutation(t *testing.T) {
	nodes := []int{4, 8, 15, 16, 23, 42}
	s := New(nodes, rand.New(rand.NewPCG(1, 2)))

	var got []int
	for {
		n, ok := s.Next()
		if !ok {
			break
		}
		got = append(got, n)
	}

	if len(got) != len(nodes) {
		t.Fatalf("yielded %d nodes, want %d", len(got), len(nodes))
	}
	slices.Sort(got)
	if !slices.Equal(got, nodes) {
		t.Errorf("yielded %v, want a permutation of %v", got, nodes)
	}
	if s.Remaining() != 0 {
		t.Errorf("Remaining() = %d after exhaustion", s.Remaining())
	}
	if _, ok := s.Next(); ok {
		t.Error("Next() succeeded after exhaustion")
	}
}

func TestSequencer_DoesNotMutateInput(t *testing.T) {
	nodes := []int{1, 2, 3, 4, 5}
	s := New(nodes, rand.New(rand.NewPCG(7, 7)))
	for range 5 {
		s.Next()
	}
	if !slices.Equal(nodes, []int{1, 2, 3, 4, 5}) {
		t.Errorf("input mutated to %v", nodes)
	}
}

func TestSequencer_Empty(t *testing.T) {
	s := New(nil, rand.New(rand.NewPCG(1, 1)))
	if _, ok := s.Next(); ok {
		t.Error("Next() on empty sequencer succeeded")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d", s.Len())
	}
}

func TestSequencer_Deterministic(t *testing.T) {
	nodes := make([]int, 50)
	for i := range nodes {
		nodes[i] = i
	}
	draw := func() []int {
		s := New(nodes, rand.New(rand.NewPCG(99, 0)))
		var out []int
		for n, ok := s.Next(); ok; n, ok = s.Next() {
			out = append(out, n)
		}
		return out
	}
	if a, b := draw(), draw(); !slices.Equal(a, b) {
		t.Error("same seed produced different orders")
	}
}

func TestSequencer_FirstElementRoughlyUniform(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	counts := make([]int, 4)
	const trials = 8000
	for range trials {
		n, _ := New([]int{0, 1, 2, 3}, rng).Next()
		counts[n]++
	}
	for i, c := range counts {
		if c < trials/4-300 || c > trials/4+300 {
			t.Errorf("node %d drawn first %d times out of %d", i, c, trials)
		}
	}
}
