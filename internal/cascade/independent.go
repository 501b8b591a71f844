package cascade

import (
	"context"
	"math/rand/v2"

	"github.com/tidwall/btree"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/georgeberry/thresholds/internal/population"
	"github.com/georgeberry/thresholds/internal/sequence"
)

// trial runs one Bernoulli(p) activation attempt.
func trial(p float64, rng *rand.Rand) bool {
	return distuv.Bernoulli{P: p, Src: rng}.Rand() == 1
}

// countExposure is the exposure of node i as a plain active neighbor count.
func (r *runner) countExposure(i int) population.Exposure {
	k := r.pop.ActiveNeighbors(i)
	return population.Exposure{Value: float64(k), Active: k}
}

// pull runs the pull model. Each epoch visits every inactive node once in
// random order. A node with k active neighbors that has already failed
// Before.Active trials gets one trial per new active neighbor. The run ends
// after an epoch with no activation.
func (r *runner) pull(ctx context.Context, p float64) error {
	var inactive btree.Set[int]
	for i := range r.pop.Len() {
		if !r.pop.Node(i).Activated {
			inactive.Load(i)
		}
	}

	for inactive.Len() > 0 {
		if err := checkContext(ctx, r.res); err != nil {
			return err
		}
		r.res.Epochs++
		seq := sequence.New(inactive.Keys(), r.rng)

		activated := 0
		for ego, ok := seq.Next(); ok; ego, ok = seq.Next() {
			node := r.pop.Node(ego)
			if node.Activated {
				continue
			}
			exp := r.countExposure(ego)

			floor := 0
			if node.Before != nil {
				floor = node.Before.Active
			}
			success := false
			for t := range exp.Active - floor {
				if trial(p, r.rng) {
					node.CriticalExposure = floor + t + 1
					success = true
					break
				}
			}

			if success {
				r.pop.Activate(ego, exp)
				inactive.Delete(ego)
				activated++
			} else {
				node.Before = &exp
				if exp.Active > 0 {
					node.CriticalExposure = exp.Active
				}
			}
			r.visit(ego, exp, success)
		}
		if activated == 0 {
			return nil
		}
	}
	return nil
}

// push runs the push model. Each epoch the nodes activated in the previous
// epoch (the seeds in the first) try once to activate each inactive
// neighbor. The run ends when an epoch activates nothing.
func (r *runner) push(ctx context.Context, p float64) error {
	var frontier []int
	for i := range r.pop.Len() {
		if r.pop.Node(i).Activated {
			frontier = append(frontier, i)
		}
	}

	g := r.pop.Graph()
	for len(frontier) > 0 {
		if err := checkContext(ctx, r.res); err != nil {
			return err
		}
		r.res.Epochs++
		seq := sequence.New(frontier, r.rng)

		var next []int
		for src, ok := seq.Next(); ok; src, ok = seq.Next() {
			for _, nb := range g.Neighbors(src) {
				node := r.pop.Node(nb)
				if node.Activated {
					continue
				}
				node.CriticalExposure++
				exp := r.countExposure(nb)
				if trial(p, r.rng) {
					r.pop.Activate(nb, exp)
					next = append(next, nb)
					r.visit(nb, exp, true)
					continue
				}
				node.Before = &exp
				r.visit(nb, exp, false)
			}
		}
		frontier = next
	}
	return nil
}
