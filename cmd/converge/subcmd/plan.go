package subcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgeops/converge/kernel/engine"
	"github.com/edgeops/converge/kernel/executor"
	"github.com/edgeops/converge/kernel/loader"
	"github.com/edgeops/converge/kernel/model"
	"github.com/edgeops/converge/kernel/probe"
)

func init() {
	RootCmd.AddCommand(NewPlanCommand())
}

func NewPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <document>",
		Short: "Dry-run a desired-state document and print the action plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
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
	plan, _, err := reconciler.Plan(ctx, model.NewContext(state, cfg))
	if err != nil {
		return err
	}

	fmt.Println(renderPlanTable(plan))
	fmt.Printf("plan: %d divergent action(s), %d skipped, %d unmanaged\n",
		plan.Divergent(), len(plan.Skips), len(plan.Unmanaged))
	return nil
}
