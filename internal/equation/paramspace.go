package equation

import (
	"errors"
	"fmt"
)

// Grid describes a family of equations: a constant offset, 1..MaxVars
// covariates whose kinds come from VarTypes, and an epsilon noise term.
// Every combination of the listed values is expanded.
type Grid struct {
	Constants     []float64      `json:"constants" yaml:"constants"`
	Coefficients  []float64      `json:"coefficients" yaml:"coefficients"`
	NormalSDs     []float64      `json:"normal_sds" yaml:"normal_sds"`
	BinomialMeans []float64      `json:"binomial_means" yaml:"binomial_means"`
	ErrorSDs      []float64      `json:"error_sds" yaml:"error_sds"`
	VarTypes      []Distribution `json:"var_types" yaml:"var_types"`
	MaxVars       int            `json:"max_vars" yaml:"max_vars"`
}

// DefaultGrid returns the sweep used for simulated topologies: constant 5,
// one normal covariate with coefficient 3 and sd 1, and five noise levels.
func DefaultGrid() Grid {
	return Grid{
		Constants:     []float64{5},
		Coefficients:  []float64{3},
		NormalSDs:     []float64{1},
		BinomialMeans: []float64{0.5},
		ErrorSDs:      []float64{0.5, 0.8, 1.0, 1.5, 2.0},
		VarTypes:      []Distribution{DistNormal},
		MaxVars:       1,
	}
}

// Validate checks that the grid can produce at least one equation.
func (g Grid) Validate() error {
	if g.MaxVars < 1 {
		return fmt.Errorf("max_vars must be at least 1, got %d", g.MaxVars)
	}
	if len(g.VarTypes) == 0 {
		return errors.New("var_types must not be empty")
	}
	if len(g.Constants) == 0 || len(g.Coefficients) == 0 || len(g.ErrorSDs) == 0 {
		return errors.New("constants, coefficients and error_sds must not be empty")
	}
	for _, vt := range g.VarTypes {
		switch vt {
		case DistNormal:
			if len(g.NormalSDs) == 0 {
				return errors.New("normal_sds must not be empty when var_types includes normal")
			}
		case DistBinomial:
			if len(g.BinomialMeans) == 0 {
				return errors.New("binomial_means must not be empty when var_types includes binomial")
			}
		default:
			return fmt.Errorf("unsupported covariate type %q", vt)
		}
	}
	return nil
}

// Expand returns every equation described by the grid in a deterministic order.
func (g Grid) Expand() ([]Equation, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("expand grid: %w", err)
	}

	var out []Equation
	for n := 1; n <= g.MaxVars; n++ {
		for _, kinds := range multisets(g.VarTypes, n) {
			// One axis per covariate coefficient, one per covariate shape
			// parameter (sd or mean), then error sd and constant.
			axes := make([][]float64, 0, 2*n+2)
			for range kinds {
				axes = append(axes, g.Coefficients)
			}
			for _, k := range kinds {
				if k == DistBinomial {
					axes = append(axes, g.BinomialMeans)
				} else {
					axes = append(axes, g.NormalSDs)
				}
			}
			axes = append(axes, g.ErrorSDs, g.Constants)

			product(axes, func(vals []float64) {
				eq := Equation{
					ConstantName: {Distribution: DistConstant, Coefficient: Float(vals[2*n+1])},
					EpsilonName:  {Distribution: DistEpsilon, Mean: Float(0), SD: Float(vals[2*n])},
				}
				for i, k := range kinds {
					t := Term{Distribution: k, Coefficient: Float(vals[i])}
					if k == DistBinomial {
						t.Mean = Float(vals[n+i])
					} else {
						t.Mean = Float(0)
						t.SD = Float(vals[n+i])
					}
					eq[fmt.Sprintf("var%d", i+1)] = t
				}
				out = append(out, eq)
			})
		}
	}
	return out, nil
}

// multisets returns all size-n combinations with replacement of items,
// preserving item order.
func multisets(items []Distribution, n int) [][]Distribution {
	var out [][]Distribution
	cur := make([]Distribution, 0, n)
	var rec func(start int)
	rec = func(start int) {
		if len(cur) == n {
			out = append(out, append([]Distribution(nil), cur...))
			return
		}
		for i := start; i < len(items); i++ {
			cur = append(cur, items[i])
			rec(i)
			cur = cur[:len(cur)-1]
		}
	}
	rec(0)
	return out
}

// product calls fn with every element of the cartesian product of axes.
// The slice passed to fn is reused between calls.
func product(axes [][]float64, fn func([]float64)) {
	vals := make([]float64, len(axes))
	var rec func(i int)
	rec = func(i int) {
		if i == len(axes) {
			fn(vals)
			return
		}
		for _, v := range axes[i] {
			vals[i] = v
			rec(i + 1)
		}
	}
	rec(0)
}
