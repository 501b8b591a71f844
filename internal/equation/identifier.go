package equation

import (
	"fmt"
	"strconv"
	"strings"
)

// Separators used by Identifier, from coarsest to finest.
const (
	sectionSep  = "___"
	variableSep = "__"
	fieldSep    = "_"
)

var distCodes = map[Distribution]string{
	DistConstant: "c",
	DistEpsilon:  "e",
	DistNormal:   "n",
	DistBinomial: "b",
}

// Identifier serializes an equation and graph parameters into a flat label
// suitable for file names and run tables.
//
// Variables are encoded as distribution_coefficient_mean_sd (N marks an
// absent value) and joined by "__"; graph parameters are joined by "_";
// the two sections are joined by "___". Dots become dashes.
func Identifier(eq Equation, graphParams ...any) string {
	vars := make([]string, 0, len(eq))
	for _, name := range eq.Names() {
		t := eq[name]
		vars = append(vars, strings.Join([]string{
			distCodes[eq.Kind(name)],
			formatOptional(t.Coefficient),
			formatOptional(t.Mean),
			formatOptional(t.SD),
		}, fieldSep))
	}

	params := make([]string, 0, len(graphParams))
	for _, p := range graphParams {
		params = append(params, formatParam(p))
	}

	id := strings.Join(vars, variableSep)
	if len(params) > 0 {
		id += sectionSep + strings.Join(params, fieldSep)
	}
	return strings.ReplaceAll(id, ".", "-")
}

func formatOptional(p *float64) string {
	if p == nil {
		return "N"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func formatParam(p any) string {
	switch v := p.(type) {
	case nil:
		return "N"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case *float64:
		return formatOptional(v)
	default:
		return fmt.Sprint(v)
	}
}
