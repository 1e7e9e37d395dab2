package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/edgeops/converge/kernel/model"
	"github.com/edgeops/converge/kernel/planner"
	"github.com/edgeops/converge/kernel/store"
)

func stubPlan(plan *planner.Plan, err error) PlanFunc {
	return func(ctx context.Context, documentPath string) (*planner.Plan, error) {
		return plan, err
	}
}

func savedRun(t *testing.T, s store.HistoryStore, environment string, state model.RunState) {
	t.Helper()
	record := &store.RunRecord{
		Report: model.ConvergenceReport{Environment: environment, State: state},
	}
	if err := s.SaveRun(environment, record); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
}

func TestNewConvergeMCPServer(t *testing.T) {
	server := NewConvergeMCPServer(store.NewMemoryStore(), stubPlan(&planner.Plan{}, nil))

	if server == nil {
		t.Fatal("expected server to be created")
	}
	if server.store == nil {
		t.Error("expected store to be set")
	}
	if server.plan == nil {
		t.Error("expected plan func to be set")
	}
}

func TestStatusHandler(t *testing.T) {
	memStore := store.NewMemoryStore()
	savedRun(t, memStore, "staging", model.RunConverged)
	server := NewConvergeMCPServer(memStore, stubPlan(&planner.Plan{}, nil))

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]any{
				"environment": "staging",
			},
		},
	}

	result, err := server.statusHandler(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success result")
	}

	text := result.Content[0].(mcp.TextContent).Text
	var record store.RunRecord
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		t.Fatalf("status response is not json: %v", err)
	}
	if record.Report.State != model.RunConverged {
		t.Errorf("expected Converged, got %s", record.Report.State)
	}
}

func TestStatusHandler_NotFound(t *testing.T) {
	server := NewConvergeMCPServer(store.NewMemoryStore(), stubPlan(&planner.Plan{}, nil))

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]any{
				"environment": "nonexistent",
			},
		},
	}

	result, err := server.statusHandler(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for unknown environment")
	}
}

func TestPlanHandler(t *testing.T) {
	id := model.ResourceId{Kind: model.KindDnsRecord, Name: "www"}
	plan := &planner.Plan{
		Ordered: []model.Action{
			{Op: model.OpCreate, Id: id, Reason: "CNAME record -> lb.example.com (ttl 300)"},
		},
	}
	server := NewConvergeMCPServer(store.NewMemoryStore(), stubPlan(plan, nil))

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]any{
				"document": "/tmp/staging.yml",
			},
		},
	}

	result, err := server.planHandler(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success result")
	}

	text := result.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, "1 divergent action(s)") {
		t.Errorf("expected divergence summary, got: %s", text)
	}
	if !strings.Contains(text, "create dns-record:www") {
		t.Errorf("expected action line, got: %s", text)
	}
}

func TestPlanHandler_Error(t *testing.T) {
	server := NewConvergeMCPServer(store.NewMemoryStore(), stubPlan(nil, errors.New("document not found")))

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]any{
				"document": "/tmp/missing.yml",
			},
		},
	}

	result, err := server.planHandler(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for failed plan")
	}
}

func TestPlanHandler_MissingArgument(t *testing.T) {
	server := NewConvergeMCPServer(store.NewMemoryStore(), stubPlan(&planner.Plan{}, nil))

	result, err := server.planHandler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing document argument")
	}
}

func TestRunsHandler(t *testing.T) {
	memStore := store.NewMemoryStore()
	savedRun(t, memStore, "staging", model.RunConverged)
	savedRun(t, memStore, "production", model.RunPartiallyFailed)
	server := NewConvergeMCPServer(memStore, stubPlan(&planner.Plan{}, nil))

	contents, err := server.runsHandler(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(contents))
	}

	text := contents[0].(mcp.TextResourceContents).Text
	var runs map[string][]store.RunRecord
	if err := json.Unmarshal([]byte(text), &runs); err != nil {
		t.Fatalf("runs resource is not json: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 environments, got %d", len(runs))
	}
	if len(runs["staging"]) != 1 {
		t.Errorf("expected 1 staging run, got %d", len(runs["staging"]))
	}
}
