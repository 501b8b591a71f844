// Package sequence provides the random visit order used by the asynchronous
// threshold engine.
package sequence

import "math/rand/v2"

// Sequencer yields a uniformly random permutation of a fixed node set, one
// element at a time. The permutation is built lazily with an incremental
// Fisher-Yates shuffle, so drawing k elements costs O(k) random numbers.
// A Sequencer is not safe for concurrent use.
type Sequencer struct {
	nodes []int
	pos   int
	rng   *rand.Rand
}

// New returns a Sequencer over a copy of nodes.
func New(nodes []int, rng *rand.Rand) *Sequencer {
	return &Sequencer{nodes: append([]int(nil), nodes...), rng: rng}
}

// Next returns the next node in the permutation. The second result is false
// once every node has been yielded.
func (s *Sequencer) Next() (int, bool) {
	if s.pos >= len(s.nodes) {
		return 0, false
	}
	j := s.pos + s.rng.IntN(len(s.nodes)-s.pos)
	s.nodes[s.pos], s.nodes[j] = s.nodes[j], s.nodes[s.pos]
	n := s.nodes[s.pos]
	s.pos++
	return n, true
}

// Remaining returns the number of nodes not yet yielded.
func (s *Sequencer) Remaining() int { return len(s.nodes) - s.pos }

// Len returns the size of the underlying node set.
func (s *Sequencer) Len() int { return len(s.nodes) }
