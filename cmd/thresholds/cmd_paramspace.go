package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/georgeberry/thresholds/internal/equation"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newParamSpaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paramspace",
		Short: "Expand a parameter grid into equations",
		Long: `Expand a grid of constants, coefficients, covariate parameters and
error sds into every equation it describes.

Without --output the identifiers are printed one per line. With --output
each equation is written to <dir>/<identifier>.yaml, ready for
"thresholds run --equation".

Examples:
  thresholds paramspace
  thresholds paramspace --grid grid.yaml -o equations/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			gridPath, _ := cmd.Flags().GetString("grid")
			outDir, _ := cmd.Flags().GetString("output")

			grid := equation.DefaultGrid()
			if gridPath != "" {
				var err error
				if grid, err = equation.LoadGridFile(gridPath); err != nil {
					return err
				}
			}

			eqs, err := grid.Expand()
			if err != nil {
				return err
			}

			if outDir != "" {
				if err := os.MkdirAll(outDir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				for _, eq := range eqs {
					data, err := yaml.Marshal(eq)
					if err != nil {
						return fmt.Errorf("encode equation: %w", err)
					}
					path := filepath.Join(outDir, equation.Identifier(eq)+".yaml")
					if err := os.WriteFile(path, data, 0644); err != nil {
						return fmt.Errorf("write equation: %w", err)
					}
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				type entry struct {
					Identifier string            `json:"identifier"`
					Equation   equation.Equation `json:"equation"`
				}
				entries := make([]entry, 0, len(eqs))
				for _, eq := range eqs {
					entries = append(entries, entry{equation.Identifier(eq), eq})
				}
				return json.NewEncoder(out).Encode(entries)
			}
			if outDir != "" {
				fmt.Fprintf(out, "Wrote %d equations to %s\n", len(eqs), outDir)
				return nil
			}
			for _, eq := range eqs {
				fmt.Fprintln(out, equation.Identifier(eq))
			}
			return nil
		},
	}

	cmd.Flags().String("grid", "", "Grid YAML file (default: built-in sweep)")
	cmd.Flags().StringP("output", "o", "", "Write one equation file per grid point into this directory")

	return cmd
}
