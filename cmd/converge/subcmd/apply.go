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
	"fmt"

	"github.com/michaelquigley/pfxlog"
	"github.com/spf13/cobra"

	"github.com/edgeops/converge/kernel/engine"
	"github.com/edgeops/converge/kernel/executor"
	"github.com/edgeops/converge/kernel/loader"
	"github.com/edgeops/converge/kernel/metrics"
	"github.com/edgeops/converge/kernel/model"
	"github.com/edgeops/converge/kernel/probe"
	"github.com/edgeops/converge/kernel/store"
)

func init() {
	RootCmd.AddCommand(NewApplyCommand())
}

func NewApplyCommand() *cobra.Command {
	applyCmd := &ApplyCommand{}

	cmd := &cobra.Command{
		Use:   "apply <document>",
		Short: "Reconcile the live environment onto a desired-state document",
		Args:  cobra.ExactArgs(1),
		RunE:  applyCmd.apply,
	}

	cmd.Flags().BoolVar(&applyCmd.DryRun, "dry-run", false, "plan only, mutate nothing")

	return cmd
}

type ApplyCommand struct {
	DryRun bool
}

func (a *ApplyCommand) apply(cmd *cobra.Command, args []string) error {
	state, err := loader.LoadDesiredState(args[0])
	if err != nil {
		return err
	}
	cfg := tryLoadConfig()

	set, err := buildClients(cfg, state)
	if err != nil {
		return err
	}
	defer func() { _ = set.Host.Close() }()

	ctx, cancel := interruptibleContext()
	defer cancel()

	reconciler := engine.NewReconciler(probe.NewProber(set, cfg), executor.NewExecutor(set, cfg))
	mctx := model.NewContext(state, cfg)

	if a.DryRun {
		plan, _, err := reconciler.Plan(ctx, mctx)
		if err != nil {
			return err
		}
		fmt.Println(renderPlanTable(plan))
		pfxlog.Logger().Infof("dry-run: %d divergent action(s), nothing applied", plan.Divergent())
		return nil
	}

	reporter := metrics.NewReporter(cfg.Metrics)
	defer reporter.Close()
	reconciler.WithStore(store.NewFileStore(workDir(cfg))).WithMetrics(reporter)

	report, err := reconciler.Reconcile(ctx, mctx)
	if err != nil {
		return err
	}

	fmt.Println(renderReportTable(report))
	converged, failed, skipped, unmanaged := report.Counts()
	pfxlog.Logger().Infof("apply: environment '%s' %s", state.Environment, report.State)
	pfxlog.Logger().Infof("  converged: %d, failed: %d, skipped: %d, unmanaged: %d",
		converged, failed, skipped, unmanaged)

	if !report.Success() {
		return errPartiallyFailed
	}
	return nil
}
