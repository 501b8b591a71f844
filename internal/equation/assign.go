package equation

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Draw is one node's sampled variables and the resulting threshold.
type Draw struct {
	Threshold float64
	Values    map[string]float64
}

// sampler produces one variable's value and its contribution to the threshold.
type sampler func() (value, contribution float64)

// Assign validates eq and draws n independent records from it using rng.
// Record i belongs to the i-th node in the caller's node order. Assign has no
// side effects beyond advancing rng, so callers running concurrently must give
// each call its own generator.
func Assign(n int, eq Equation, rng *rand.Rand) ([]Draw, error) {
	if n < 0 {
		return nil, fmt.Errorf("assign thresholds: negative node count %d", n)
	}
	if err := eq.Validate(); err != nil {
		return nil, fmt.Errorf("assign thresholds: %w", err)
	}

	names := eq.Names()
	samplers := make([]sampler, len(names))
	for i, name := range names {
		samplers[i] = eq.sampler(name, rng)
	}

	draws := make([]Draw, n)
	for node := range draws {
		values := make(map[string]float64, len(names))
		total := 0.0
		for i, name := range names {
			v, c := samplers[i]()
			values[name] = v
			total += c
		}
		draws[node] = Draw{Threshold: total, Values: values}
	}
	return draws, nil
}

func (eq Equation) sampler(name string, rng *rand.Rand) sampler {
	t := eq[name]
	switch eq.Kind(name) {
	case DistConstant:
		offset := valueOr(t.Mean, valueOr(t.Coefficient, 0))
		return func() (float64, float64) { return offset, offset }
	case DistEpsilon:
		dist := distuv.Normal{Mu: valueOr(t.Mean, 0), Sigma: *t.SD, Src: rng}
		return func() (float64, float64) {
			d := dist.Rand()
			return d, d
		}
	case DistBinomial:
		dist := distuv.Bernoulli{P: *t.Mean, Src: rng}
		coef := *t.Coefficient
		return func() (float64, float64) {
			d := dist.Rand()
			return d, coef * d
		}
	default:
		dist := distuv.Normal{Mu: *t.Mean, Sigma: *t.SD, Src: rng}
		coef := *t.Coefficient
		return func() (float64, float64) {
			d := dist.Rand()
			return d, coef * d
		}
	}
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
