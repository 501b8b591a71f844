// Package equation draws per-node thresholds from a linear threshold equation.
//
// An equation maps variable names to terms. Two names are reserved: "constant"
// contributes a fixed offset and "epsilon" contributes an unweighted normal
// noise draw. Every other name is an exogenous covariate drawn independently
// per node and weighted by its coefficient. A node's threshold is the sum of
// all contributions.
package equation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Reserved variable names.
const (
	ConstantName = "constant"
	EpsilonName  = "epsilon"

	// ThresholdName is the key the threshold is reported under; it cannot be
	// used as a variable name.
	ThresholdName = "threshold"
)

// Distribution names the kind of draw a term makes.
type Distribution string

const (
	DistNormal   Distribution = "normal"
	DistBinomial Distribution = "binomial"
	DistConstant Distribution = "constant"
	DistEpsilon  Distribution = "epsilon"
)

// Term describes one variable of a threshold equation.
// Absent values are nil so that a missing key can be told apart from zero.
type Term struct {
	Distribution Distribution `json:"distribution,omitempty" yaml:"distribution,omitempty" validate:"omitempty,oneof=normal binomial constant epsilon"`
	Mean         *float64     `json:"mean,omitempty" yaml:"mean,omitempty"`
	SD           *float64     `json:"sd,omitempty" yaml:"sd,omitempty" validate:"omitempty,gte=0"`
	Coefficient  *float64     `json:"coefficient,omitempty" yaml:"coefficient,omitempty"`
}

// Equation maps variable names to terms.
type Equation map[string]Term

// ValidationError reports a malformed equation variable.
type ValidationError struct {
	Variable string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Variable == "" {
		return "invalid equation: " + e.Reason
	}
	return fmt.Sprintf("invalid equation variable %q: %s", e.Variable, e.Reason)
}

var validate = validator.New()

// Float returns a pointer to v. It keeps literal equations in tests and
// callers short.
func Float(v float64) *float64 { return &v }

// Names returns the variable names in sorted order. Draws are made in this
// order so that a fixed random stream always yields the same thresholds.
func (eq Equation) Names() []string {
	names := make([]string, 0, len(eq))
	for name := range eq {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kind resolves the effective distribution of the named term. Reserved names
// imply their distribution; covariates default to normal.
func (eq Equation) Kind(name string) Distribution {
	t := eq[name]
	switch {
	case name == ConstantName:
		return DistConstant
	case name == EpsilonName:
		return DistEpsilon
	case t.Distribution == "":
		return DistNormal
	default:
		return t.Distribution
	}
}

// Validate checks every term for the keys its distribution requires.
// The first offending variable, in name order, is reported.
func (eq Equation) Validate() error {
	if len(eq) == 0 {
		return &ValidationError{Reason: "no variables"}
	}
	for _, name := range eq.Names() {
		if err := eq.validateTerm(name); err != nil {
			return err
		}
	}
	return nil
}

func (eq Equation) validateTerm(name string) error {
	fail := func(format string, args ...any) error {
		return &ValidationError{Variable: name, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(name) == "" {
		return fail("empty variable name")
	}
	if name == ThresholdName {
		return fail("%q is reserved for the drawn threshold", ThresholdName)
	}

	t := eq[name]
	if err := validate.Struct(t); err != nil {
		return fail("%s", formatValidationError(err))
	}

	kind := eq.Kind(name)
	switch name {
	case ConstantName:
		if t.Distribution != "" && t.Distribution != DistConstant {
			return fail("reserved name requires distribution %q, got %q", DistConstant, t.Distribution)
		}
		if t.Coefficient == nil && t.Mean == nil {
			return fail("constant requires a coefficient or a mean")
		}
		if t.Coefficient != nil && t.Mean != nil && *t.Coefficient != *t.Mean {
			return fail("constant coefficient %g and mean %g disagree", *t.Coefficient, *t.Mean)
		}
		return nil
	case EpsilonName:
		if t.Distribution != "" && t.Distribution != DistEpsilon {
			return fail("reserved name requires distribution %q, got %q", DistEpsilon, t.Distribution)
		}
		if t.SD == nil {
			return fail("epsilon requires sd")
		}
		return nil
	}

	switch kind {
	case DistConstant, DistEpsilon:
		return fail("distribution %q is only allowed on the %q variable", kind, string(kind))
	case DistNormal:
		if t.Mean == nil {
			return fail("normal distribution requires mean")
		}
		if t.SD == nil {
			return fail("normal distribution requires sd")
		}
		if t.Coefficient == nil {
			return fail("normal distribution requires coefficient")
		}
	case DistBinomial:
		if t.Mean == nil {
			return fail("binomial distribution requires mean")
		}
		if *t.Mean < 0 || *t.Mean > 1 {
			return fail("binomial mean must be between 0 and 1, got %v", *t.Mean)
		}
		if t.Coefficient == nil {
			return fail("binomial distribution requires coefficient")
		}
	}
	return nil
}

// formatValidationError flattens validator field errors into one message.
func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s], got %v", strings.ToLower(fe.Field()), fe.Param(), fe.Value()))
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be >= %s", strings.ToLower(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
