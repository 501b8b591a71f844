package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/georgeberry/thresholds/internal/equation"
	"github.com/spf13/cobra"
)

func newEquationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "equation",
		Short: "Check threshold equation files",
		Long: `Validate threshold equations and print the identifiers runs are
labeled with.

An equation is a YAML map from variable name to term:

  constant: {distribution: constant, coefficient: 5}
  var1:     {distribution: normal, mean: 0, sd: 1, coefficient: 3}
  epsilon:  {distribution: epsilon, mean: 0, sd: 0.5}

Examples:
  thresholds equation validate eq.yaml
  thresholds equation identify eq.yaml 12 1000 ws 0.1`,
	}

	cmd.AddCommand(
		newEquationValidateCmd(),
		newEquationIdentifyCmd(),
	)

	return cmd
}

func newEquationValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an equation file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			eq, err := equation.LoadFile(args[0])
			if err != nil {
				if jsonOut {
					result := map[string]any{"valid": false, "error": err.Error()}
					var verr *equation.ValidationError
					if errors.As(err, &verr) {
						result["variable"] = verr.Variable
					}
					json.NewEncoder(cmd.OutOrStdout()).Encode(result)
				}
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"valid":     true,
					"variables": eq.Names(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Equation is valid (%d variables)\n", len(eq))
			for _, name := range eq.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %s\n", name, eq.Kind(name))
			}
			return nil
		},
	}
}

func newEquationIdentifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify <file> [graph params...]",
		Short: "Print the run identifier of an equation",
		Long: `Print the identifier used to label runs of an equation. Trailing
arguments are appended as graph parameters, e.g. mean degree, nodes,
generator and probability.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eq, err := equation.LoadFile(args[0])
			if err != nil {
				return err
			}

			params := make([]any, 0, len(args)-1)
			for _, p := range args[1:] {
				params = append(params, p)
			}
			fmt.Fprintln(cmd.OutOrStdout(), equation.Identifier(eq, params...))
			return nil
		},
	}
}
