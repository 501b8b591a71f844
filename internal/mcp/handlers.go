package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/georgeberry/thresholds/internal/cascade"
	"github.com/georgeberry/thresholds/internal/constants"
	"github.com/georgeberry/thresholds/internal/ratelimit"
	"github.com/georgeberry/thresholds/internal/simulation"
	"github.com/georgeberry/thresholds/internal/store"
	"github.com/georgeberry/thresholds/internal/topology"
)

const (
	defaultSimulateNodes = 200
	defaultRunsLimit     = 20
	recentRunsURI        = "thresholds://runs/recent"
)

// registerTools registers all thresholds MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolSimulate,
		Description: "Run a threshold or independent cascade simulation on a generated network and report how often activation thresholds are measured correctly",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRuns,
		Description: "List stored simulation runs, or show one run with its per-node records",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolBackup,
		Description: "Write stored runs and their records to a compressed, checksummed archive in the backup directory",
	}, s.handleBackup)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRestore,
		Description: "Load runs from an archive in the backup directory into the results store",
	}, s.handleRestore)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         recentRunsURI,
		Name:        "thresholds-recent-runs",
		Description: "The most recent simulation runs with their activation and measurement outcomes.",
		MIMEType:    "text/markdown",
	}, s.handleRecentRunsResource)
}

// handleRecentRunsResource renders the latest runs as a markdown table.
func (s *Server) handleRecentRunsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	runs, err := s.store.ListRuns(ctx, store.RunFilter{Limit: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      recentRunsURI,
			MIMEType: "text/markdown",
			Text:     formatRunsMarkdown(runs),
		}},
	}, nil
}

func formatRunsMarkdown(runs []store.RunSummary) string {
	if len(runs) == 0 {
		return "No simulation runs yet.\n"
	}
	var b strings.Builder
	b.WriteString("| run | model | graph | nodes | activated | observed | unobserved | stalled |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %d | %d | %t |\n",
			r.ID, r.Model, r.Graph, r.Nodes, r.Activated, r.Observed, r.Unobserved, r.Stalled)
	}
	return b.String()
}

// handleSimulate implements the thresholds_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolSimulate, start, retErr, sanitizeToolParams(map[string]any{
			"model": args.Model, "graph": args.Graph, "nodes": args.Nodes,
			"replicates": args.Replicates, "seed": args.Seed,
			"equation": args.Equation != nil, "seeds": len(args.Seeds) > 0,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolSimulate); err != nil {
		return nil, SimulateOutput{}, err
	}

	sc, err := s.scenarioFor(args)
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	batch, err := s.runner.Run(ctx, sc)
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	out := SimulateOutput{
		Identifier:        batch.Identifier,
		Model:             string(batch.Model),
		Runs:              batch.Runs,
		MeanActivated:     batch.MeanActivated,
		MeanObservedShare: batch.MeanObservedShare,
		SDObservedShare:   batch.SDObservedShare,
		Stalled:           batch.Stalled,
	}
	if args.IncludeRecords && len(batch.Runs) > 0 {
		records, err := s.store.Records(ctx, batch.Runs[0].ID)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("failed to read records: %w", err)
		}
		out.Records = records
	}
	out.Message = fmt.Sprintf("%d run(s) of %s on %d nodes: mean %.1f active, %.1f%% of activations measured correctly",
		len(batch.Runs), batch.Model, sc.Graph.Nodes, batch.MeanActivated, 100*batch.MeanObservedShare)
	return nil, out, nil
}

// scenarioFor turns tool arguments into a validated scenario.
func (s *Server) scenarioFor(args SimulateInput) (simulation.Scenario, error) {
	model, err := cascade.ParseModel(args.Model)
	if err != nil {
		return simulation.Scenario{}, err
	}

	kind := topology.KindWattsStrogatz
	if args.Graph != "" {
		if kind, err = topology.ParseKind(args.Graph); err != nil {
			return simulation.Scenario{}, err
		}
	}
	nodes := args.Nodes
	if nodes == 0 {
		nodes = defaultSimulateNodes
	}
	if nodes < 0 || nodes > s.maxNodes {
		return simulation.Scenario{}, fmt.Errorf("nodes must be between 1 and %d, got %d", s.maxNodes, nodes)
	}
	replicates := args.Replicates
	if replicates == 0 {
		replicates = 1
	}
	if replicates < 0 || replicates > DefaultMaxReplicates {
		return simulation.Scenario{}, fmt.Errorf("replicates must be between 1 and %d, got %d", DefaultMaxReplicates, replicates)
	}

	spec := topology.Spec{Kind: kind, Nodes: nodes, MeanDegree: constants.DefaultMeanDegree, Prob: constants.DefaultRewireProb}
	if args.MeanDegree > 0 {
		spec.MeanDegree = args.MeanDegree
	}
	if args.GraphProb != nil {
		spec.Prob = *args.GraphProb
	}

	sc := simulation.DefaultScenario()
	sc.Name = "mcp"
	sc.Model = model
	sc.Graph = &spec
	sc.Replicates = replicates
	sc.Workers = 1
	sc.SeedFraction = args.SeedFraction
	sc.Seeds = args.Seeds
	if args.Seed != 0 {
		sc.Seed = args.Seed
	}
	if args.ActivationProb != nil {
		sc.ActivationProb = *args.ActivationProb
	}

	switch {
	case args.Equation != nil:
		sc.Equation = args.Equation
	case model.UsesThresholds():
		sc.Equation = simulation.ConstantEquation(defaultThreshold(model, args.Threshold))
	}

	if err := sc.Validate(); err != nil {
		return simulation.Scenario{}, err
	}
	return sc, nil
}

func defaultThreshold(model cascade.Model, t *float64) float64 {
	switch {
	case t != nil:
		return *t
	case model == cascade.ModelFractional:
		return 0.2
	}
	return 1
}

// handleRuns implements the thresholds_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolRuns, start, retErr, sanitizeToolParams(map[string]any{
			"run_id": args.RunID, "model": args.Model, "identifier": args.Identifier, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolRuns); err != nil {
		return nil, RunsOutput{}, err
	}

	if args.RunID != "" {
		run, err := s.store.GetRun(ctx, args.RunID)
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, RunsOutput{}, fmt.Errorf("run %s not found", args.RunID)
		}
		if err != nil {
			return nil, RunsOutput{}, fmt.Errorf("failed to get run: %w", err)
		}
		out := RunsOutput{Runs: []store.RunSummary{*run}, Count: 1}
		if args.IncludeRecords {
			if out.Records, err = s.store.Records(ctx, args.RunID); err != nil {
				return nil, RunsOutput{}, fmt.Errorf("failed to read records: %w", err)
			}
		}
		return nil, out, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	runs, err := s.store.ListRuns(ctx, store.RunFilter{Model: args.Model, Identifier: args.Identifier, Limit: limit})
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	return nil, RunsOutput{Runs: runs, Count: len(runs)}, nil
}
