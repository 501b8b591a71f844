package equation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads an equation from a YAML (or JSON) file and validates it.
func LoadFile(path string) (Equation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading equation file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML (or JSON) equation and validates it.
func Parse(data []byte) (Equation, error) {
	var eq Equation
	if err := yaml.Unmarshal(data, &eq); err != nil {
		return nil, fmt.Errorf("parsing equation: %w", err)
	}
	if err := eq.Validate(); err != nil {
		return nil, err
	}
	return eq, nil
}

// LoadGridFile reads a parameter grid from a YAML file. Unset fields keep the
// values from DefaultGrid.
func LoadGridFile(path string) (Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, fmt.Errorf("reading grid file: %w", err)
	}
	g := DefaultGrid()
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Grid{}, fmt.Errorf("parsing grid file: %w", err)
	}
	return g, nil
}
