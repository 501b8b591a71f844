package simulation

import (
	"github.com/georgeberry/thresholds/internal/equation"
)

// ConstantEquation returns an equation giving every node the threshold c
// and no covariates.
func ConstantEquation(c float64) equation.Equation {
	return equation.Equation{
		equation.ConstantName: {Distribution: equation.DistConstant, Coefficient: equation.Float(c)},
	}
}

// NormalEquation returns threshold = constant + coef*x + epsilon with
// x ~ N(0, 1) and epsilon ~ N(0, errSD), the single-covariate equation used
// throughout the parameter sweeps.
func NormalEquation(constant, coef, errSD float64) equation.Equation {
	return equation.Equation{
		equation.ConstantName: {Distribution: equation.DistConstant, Coefficient: equation.Float(constant)},
		equation.EpsilonName:  {Distribution: equation.DistEpsilon, Mean: equation.Float(0), SD: equation.Float(errSD)},
		"var1":                {Distribution: equation.DistNormal, Mean: equation.Float(0), SD: equation.Float(1), Coefficient: equation.Float(coef)},
	}
}
