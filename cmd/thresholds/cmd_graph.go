package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/georgeberry/thresholds/internal/constants"
	"github.com/georgeberry/thresholds/internal/topology"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate and inspect topologies",
		Long: `Generate random topologies and summarize graph files.

Files ending in .dot or .gv use Graphviz DOT; anything else is a
whitespace separated edge list.

Examples:
  thresholds graph generate --kind powerlaw-cluster --nodes 1000 -o plc.edges
  thresholds graph generate --kind star --nodes 5 -o star.dot
  thresholds graph stats plc.edges`,
	}

	cmd.AddCommand(
		newGraphGenerateCmd(),
		newGraphStatsCmd(),
	)

	return cmd
}

func newGraphGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random topology",
		RunE: func(cmd *cobra.Command, args []string) error {
			kindName, _ := cmd.Flags().GetString("kind")
			nodes, _ := cmd.Flags().GetInt("nodes")
			meanDegree, _ := cmd.Flags().GetInt("mean-degree")
			prob, _ := cmd.Flags().GetFloat64("prob")
			seed, _ := cmd.Flags().GetUint64("seed")
			output, _ := cmd.Flags().GetString("output")

			kind, err := topology.ParseKind(kindName)
			if err != nil {
				return err
			}
			spec := topology.Spec{Kind: kind, Nodes: nodes, MeanDegree: meanDegree, Prob: prob}
			g, err := topology.Generate(spec, rand.New(rand.NewPCG(seed, 0)))
			if err != nil {
				return fmt.Errorf("generate graph: %w", err)
			}

			if output == "" {
				return topology.WriteEdgeList(cmd.OutOrStdout(), g)
			}
			if err := topology.SaveFile(output, g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d nodes and %d edges to %s\n", g.Len(), g.EdgeCount(), output)
			return nil
		},
	}

	cmd.Flags().String("kind", string(topology.KindWattsStrogatz), "Generator: watts-strogatz, powerlaw-cluster, barabasi-albert, erdos-renyi, cycle, star, complete or path")
	cmd.Flags().Int("nodes", constants.DefaultGraphSize, "Number of nodes")
	cmd.Flags().Int("mean-degree", constants.DefaultMeanDegree, "Target mean degree")
	cmd.Flags().Float64("prob", constants.DefaultRewireProb, "Rewiring or triad formation probability")
	cmd.Flags().Uint64("seed", constants.DefaultSeed, "Random seed")
	cmd.Flags().StringP("output", "o", "", "Output file (default edge list on stdout)")

	return cmd
}

// GraphStats summarizes a topology.
type GraphStats struct {
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
	MeanDegree float64 `json:"mean_degree"`
	SDDegree   float64 `json:"sd_degree"`
	MinDegree  int     `json:"min_degree"`
	MaxDegree  int     `json:"max_degree"`
	Isolated   int     `json:"isolated"`
	Density    float64 `json:"density"`
}

func computeGraphStats(g *topology.Graph) GraphStats {
	s := GraphStats{Nodes: g.Len(), Edges: g.EdgeCount()}
	if s.Nodes == 0 {
		return s
	}

	degrees := make([]float64, s.Nodes)
	s.MinDegree = g.Degree(0)
	for i := range s.Nodes {
		d := g.Degree(i)
		degrees[i] = float64(d)
		s.MinDegree = min(s.MinDegree, d)
		s.MaxDegree = max(s.MaxDegree, d)
		if d == 0 {
			s.Isolated++
		}
	}
	s.MeanDegree = stat.Mean(degrees, nil)
	if s.Nodes > 1 {
		s.SDDegree = stat.StdDev(degrees, nil)
		s.Density = 2 * float64(s.Edges) / float64(s.Nodes*(s.Nodes-1))
	}
	return s
}

func newGraphStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Summarize a graph file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			g, err := topology.LoadFile(args[0])
			if err != nil {
				return err
			}
			s := computeGraphStats(g)

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(s)
			}
			fmt.Fprintf(out, "Nodes:        %d\n", s.Nodes)
			fmt.Fprintf(out, "Edges:        %d\n", s.Edges)
			fmt.Fprintf(out, "Mean degree:  %.2f (sd %.2f)\n", s.MeanDegree, s.SDDegree)
			fmt.Fprintf(out, "Degree range: %d-%d\n", s.MinDegree, s.MaxDegree)
			fmt.Fprintf(out, "Isolated:     %d\n", s.Isolated)
			fmt.Fprintf(out, "Density:      %.4f\n", s.Density)
			return nil
		},
	}
}
