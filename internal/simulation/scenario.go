package simulation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/georgeberry/thresholds/internal/cascade"
	"github.com/georgeberry/thresholds/internal/constants"
	"github.com/georgeberry/thresholds/internal/equation"
	"github.com/georgeberry/thresholds/internal/topology"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Scenario defines a batch of replicate runs.
type Scenario struct {
	Name  string        `yaml:"name,omitempty" json:"name,omitempty"`
	Model cascade.Model `yaml:"model" json:"model" validate:"required,oneof=integer fractional push pull"`

	// Graph generates a topology. Exactly one of Graph and GraphFile is set.
	Graph *topology.Spec `yaml:"graph,omitempty" json:"graph,omitempty"`

	// GraphFile loads a fixed topology from an edge list or DOT file.
	GraphFile string `yaml:"graph_file,omitempty" json:"graph_file,omitempty"`

	// Equation draws thresholds and covariates. Required by threshold models,
	// either inline or through EquationFile.
	Equation     equation.Equation `yaml:"equation,omitempty" json:"equation,omitempty"`
	EquationFile string            `yaml:"equation_file,omitempty" json:"equation_file,omitempty"`

	Replicates int    `yaml:"replicates,omitempty" json:"replicates,omitempty" validate:"gte=0"`
	Workers    int    `yaml:"workers,omitempty" json:"workers,omitempty" validate:"gte=0"`
	Seed       uint64 `yaml:"seed" json:"seed"`

	// ActivationProb is p for the push and pull models.
	ActivationProb float64 `yaml:"activation_prob" json:"activation_prob" validate:"gte=0,lte=1"`

	// SeedFraction is s: round(s*N) random nodes start active.
	SeedFraction float64 `yaml:"seed_fraction" json:"seed_fraction" validate:"gte=0,lte=1"`

	// Seeds names nodes (by external ID) that start active in every replicate.
	Seeds []int64 `yaml:"seeds,omitempty" json:"seeds,omitempty"`

	// RegenerateGraph draws a fresh topology for every replicate instead of
	// sharing one across the batch. Ignored for GraphFile.
	RegenerateGraph bool `yaml:"regenerate_graph,omitempty" json:"regenerate_graph,omitempty"`

	graph *topology.Graph
}

// DefaultScenario returns a Scenario with the package defaults. Files are
// decoded on top of it, so absent keys keep these values.
func DefaultScenario() Scenario {
	return Scenario{
		Model:          cascade.ModelInteger,
		Seed:           constants.DefaultSeed,
		ActivationProb: constants.DefaultActivationProb,
	}
}

// LoadScenarioFile reads a YAML scenario. Relative graph and equation paths
// are resolved against the scenario's directory and loaded eagerly.
func LoadScenarioFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return Scenario{}, err
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	base := filepath.Dir(path)
	sc.GraphFile = resolvePath(base, sc.GraphFile)
	sc.EquationFile = resolvePath(base, sc.EquationFile)
	if err := sc.Resolve(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// ParseScenario decodes a YAML scenario over DefaultScenario. File
// references are not loaded; call Resolve for that.
func ParseScenario(data []byte) (Scenario, error) {
	sc := DefaultScenario()
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario: %w", err)
	}
	return sc, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks field ranges and the combinations a batch needs.
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	switch {
	case s.Graph == nil && s.GraphFile == "" && s.graph == nil:
		return errors.New("invalid scenario: one of graph or graph_file is required")
	case s.Graph != nil && s.GraphFile != "":
		return errors.New("invalid scenario: graph and graph_file are mutually exclusive")
	}
	if s.Model.UsesThresholds() && s.Equation == nil && s.EquationFile == "" {
		return fmt.Errorf("invalid scenario: model %s requires an equation", s.Model)
	}
	if s.Equation != nil && s.EquationFile != "" {
		return errors.New("invalid scenario: equation and equation_file are mutually exclusive")
	}
	if s.Equation != nil {
		if err := s.Equation.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Resolve loads the referenced equation and graph files into the scenario.
// It is safe to call more than once.
func (s *Scenario) Resolve() error {
	if s.EquationFile != "" {
		eq, err := equation.LoadFile(s.EquationFile)
		if err != nil {
			return err
		}
		s.Equation = eq
		s.EquationFile = ""
	}
	if s.GraphFile != "" && s.graph == nil {
		g, err := topology.LoadFile(s.GraphFile)
		if err != nil {
			return err
		}
		s.graph = g
	}
	return nil
}

// WithGraph returns a copy of s that runs on the fixed graph g.
func (s Scenario) WithGraph(g *topology.Graph, name string) Scenario {
	s.Graph = nil
	s.GraphFile = name
	s.graph = g
	return s
}

// WithGraphSpec returns a copy of s that generates its topology from spec,
// dropping any graph file.
func (s Scenario) WithGraphSpec(spec topology.Spec) Scenario {
	s.Graph = &spec
	s.GraphFile = ""
	s.graph = nil
	return s
}

// Params returns the cascade parameters for the scenario. A cascade model
// with neither a seed fraction nor explicit seeds would never start, so it
// falls back to the default seed fraction.
func (s *Scenario) Params() cascade.Params {
	p := cascade.Params{
		ActivationProb: s.ActivationProb,
		SeedFraction:   s.SeedFraction,
	}
	if !s.Model.UsesThresholds() && p.SeedFraction == 0 && len(s.Seeds) == 0 {
		p.SeedFraction = constants.DefaultSeedFraction
	}
	return p
}

// graphParams returns the graph section of the run identifier.
func (s *Scenario) graphParams() []any {
	if s.Graph != nil {
		return s.Graph.Params()
	}
	name := strings.TrimSuffix(filepath.Base(s.GraphFile), filepath.Ext(s.GraphFile))
	if s.graph != nil {
		return []any{s.graph.Len(), name}
	}
	return []any{name}
}

// graphName labels the topology in run summaries.
func (s *Scenario) graphName() string {
	if s.Graph != nil {
		return string(s.Graph.Kind)
	}
	return filepath.Base(s.GraphFile)
}

// Identifier labels every run of the scenario.
func (s *Scenario) Identifier() string {
	return equation.Identifier(s.Equation, s.graphParams()...)
}
