package cascade

import (
	"context"
	"fmt"

	"github.com/tidwall/btree"

	"github.com/georgeberry/thresholds/internal/population"
	"github.com/georgeberry/thresholds/internal/sequence"
)

// threshold runs the asynchronous threshold model. Inactive nodes are
// visited in a random permutation of the live inactive set, rebuilt each
// time it is exhausted. A node activates when its exposure reaches its
// threshold. The run stops when every node is active or when more than N
// consecutive visits activate nothing.
func (r *runner) threshold(ctx context.Context, fractional bool) error {
	n := r.pop.Len()

	var unactivated btree.Set[int]
	for i := range n {
		if !r.pop.Node(i).Activated {
			unactivated.Load(i)
		}
	}

	var seq *sequence.Sequencer
	stall := 0
	for unactivated.Len() > 0 {
		if seq == nil || seq.Remaining() == 0 {
			if err := checkContext(ctx, r.res); err != nil {
				return err
			}
			seq = r.resequence(&unactivated)
		}

		ego, _ := seq.Next()
		node := r.pop.Node(ego)
		if node.Activated {
			continue
		}

		exp, reachable := r.exposure(ego, fractional)
		if reachable && exp.Value >= node.Threshold {
			r.pop.Activate(ego, exp)
			unactivated.Delete(ego)
			stall = 0
			r.visit(ego, exp, true)
			continue
		}

		node.Before = &exp
		stall++
		r.visit(ego, exp, false)
		if stall > n {
			r.res.Stalled = true
			return nil
		}
	}
	return nil
}

// resequence builds a fresh visit order over the inactive set.
func (r *runner) resequence(unactivated *btree.Set[int]) *sequence.Sequencer {
	keys := unactivated.Keys()
	for _, i := range keys {
		if r.pop.Node(i).Activated {
			panic(fmt.Sprintf("cascade: active node %d in visit sequence", r.pop.Node(i).ID))
		}
	}
	r.res.Epochs++
	return sequence.New(keys, r.rng)
}

// exposure returns the current exposure of node i. In the fractional model
// an isolated node has no defined fraction and is reported unreachable.
func (r *runner) exposure(i int, fractional bool) (population.Exposure, bool) {
	active := r.pop.ActiveNeighbors(i)
	if !fractional {
		return population.Exposure{Value: float64(active), Active: active}, true
	}
	deg := r.pop.Graph().Degree(i)
	if deg == 0 {
		return population.Exposure{}, false
	}
	return population.Exposure{Value: float64(active) / float64(deg), Active: active}, true
}
