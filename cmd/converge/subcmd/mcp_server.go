/*
	(c) Copyright NetFoundry Inc. Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"context"

	"github.com/michaelquigley/pfxlog"
	"github.com/spf13/cobra"

	"github.com/edgeops/converge/kernel/engine"
	"github.com/edgeops/converge/kernel/executor"
	"github.com/edgeops/converge/kernel/loader"
	"github.com/edgeops/converge/kernel/mcp"
	"github.com/edgeops/converge/kernel/model"
	"github.com/edgeops/converge/kernel/planner"
	"github.com/edgeops/converge/kernel/probe"
	"github.com/edgeops/converge/kernel/store"
)

func init() {
	RootCmd.AddCommand(NewMCPServerCommand())
}

func NewMCPServerCommand() *cobra.Command {
	mcpCmd := &MCPServerCommand{}

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start MCP server for AI-driven deployment management",
		Long: `Start an MCP (Model Context Protocol) server that exposes the reconciler
to AI assistants.

The server provides tools for:
  - plan_environment: dry-run a desired-state document
  - get_status: last reconciliation outcome for an environment

And resources:
  - converge://runs: recorded reconciliation runs for all environments`,
		RunE: mcpCmd.run,
	}

	cmd.Flags().BoolVar(&mcpCmd.UseMemoryStore, "memory", false, "use in-memory run store (for testing)")

	return cmd
}

type MCPServerCommand struct {
	UseMemoryStore bool
}

func (m *MCPServerCommand) run(cmd *cobra.Command, args []string) error {
	cfg := tryLoadConfig()

	var runStore store.HistoryStore
	if m.UseMemoryStore {
		pfxlog.Logger().Info("using in-memory run store")
		runStore = store.NewMemoryStore()
	} else {
		runStore = store.NewFileStore(workDir(cfg))
	}

	planFn := func(ctx context.Context, documentPath string) (*planner.Plan, error) {
		state, err := loader.LoadDesiredState(documentPath)
		if err != nil {
			return nil, err
		}
		set, err := buildClients(cfg, state)
		if err != nil {
			return nil, err
		}
		defer func() { _ = set.Host.Close() }()

		reconciler := engine.NewReconciler(probe.NewProber(set, cfg), executor.NewExecutor(set, cfg))
		plan, _, err := reconciler.Plan(ctx, model.NewContext(state, cfg))
		return plan, err
	}

	pfxlog.Logger().Info("starting MCP server on stdio...")
	server := mcp.NewConvergeMCPServer(runStore, planFn)
	return server.ServeStdio()
}
