package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/edgeops/converge/kernel/planner"
	"github.com/edgeops/converge/kernel/store"
)

// PlanFunc dry-runs a desired-state document. The CLI wires this to the
// reconciler's Plan so the server itself stays free of client construction.
type PlanFunc func(ctx context.Context, documentPath string) (*planner.Plan, error)

type ConvergeMCPServer struct {
	server *server.MCPServer
	store  store.HistoryStore
	plan   PlanFunc
}

func NewConvergeMCPServer(s store.HistoryStore, plan PlanFunc) *ConvergeMCPServer {
	srv := server.NewMCPServer(
		"Converge Deployment Reconciler",
		"v1.0.0",
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
	)

	cs := &ConvergeMCPServer{
		server: srv,
		store:  s,
		plan:   plan,
	}

	cs.registerTools()
	cs.registerResources()

	return cs
}

func (cs *ConvergeMCPServer) ServeStdio() error {
	return server.ServeStdio(cs.server)
}

func (cs *ConvergeMCPServer) registerTools() {
	planTool := mcp.NewTool("plan_environment",
		mcp.WithDescription("Dry-run a desired-state document and report the divergence"),
		mcp.WithString("document",
			mcp.Description("Path to the desired-state YAML document"),
			mcp.Required(),
		),
	)
	cs.server.AddTool(planTool, cs.planHandler)

	statusTool := mcp.NewTool("get_status",
		mcp.WithDescription("Get the last reconciliation outcome for an environment"),
		mcp.WithString("environment",
			mcp.Description("Environment name"),
			mcp.Required(),
		),
	)
	cs.server.AddTool(statusTool, cs.statusHandler)
}

func (cs *ConvergeMCPServer) registerResources() {
	resource := mcp.NewResource("converge://runs", "Reconciliation Runs",
		mcp.WithResourceDescription("Recorded reconciliation runs for all environments"),
		mcp.WithMIMEType("application/json"),
	)
	cs.server.AddResource(resource, cs.runsHandler)
}

func (cs *ConvergeMCPServer) planHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := request.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError("document argument is required"), nil
	}
	plan, err := cs.plan(ctx, document)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("plan failed: %v", err)), nil
	}

	summary := fmt.Sprintf("%d divergent action(s), %d skipped, %d unmanaged\n",
		plan.Divergent(), len(plan.Skips), len(plan.Unmanaged))
	for _, action := range plan.Actions() {
		summary += action.String() + "\n"
	}
	return mcp.NewToolResultText(summary), nil
}

func (cs *ConvergeMCPServer) statusHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	environment, err := request.RequireString("environment")
	if err != nil {
		return mcp.NewToolResultError("environment argument is required"), nil
	}
	record, err := cs.store.GetLastRun(environment)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no status for '%s': %v", environment, err)), nil
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (cs *ConvergeMCPServer) runsHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	environments, err := cs.store.ListEnvironments()
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}

	runs := make(map[string][]store.RunRecord, len(environments))
	for _, env := range environments {
		history, err := cs.store.GetHistory(env)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for '%s': %w", env, err)
		}
		runs[env] = history
	}
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "converge://runs",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
