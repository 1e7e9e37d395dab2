package subcmd

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/michaelquigley/pfxlog"
	"github.com/spf13/cobra"

	"github.com/edgeops/converge/kernel/engine"
	"github.com/edgeops/converge/kernel/executor"
	"github.com/edgeops/converge/kernel/loader"
	"github.com/edgeops/converge/kernel/model"
	"github.com/edgeops/converge/kernel/probe"
	"github.com/edgeops/converge/kernel/store"
)

func init() {
	RootCmd.AddCommand(NewStatusCommand())
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <document>",
		Short: "Re-probe the environment and show observed vs desired state",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
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
	if err := state.Validate(); err != nil {
		return err
	}
	observed := reconciler.ProbeAll(ctx, mctx)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Resource", "Desired", "Observed", "Drift"})
	for _, decl := range state.Resources {
		obs := observed[decl.Id()]
		t.AppendRow(table.Row{
			decl.Id().String(),
			decl.Spec.Describe(),
			describeObservation(obs),
			driftOf(decl, obs),
		})
	}
	fmt.Println(t.Render())

	if record, err := store.NewFileStore(workDir(cfg)).GetLastRun(state.Environment); err == nil {
		pfxlog.Logger().Infof("last run: %s at %s",
			record.Report.State, record.Report.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func describeObservation(obs model.Observation) string {
	switch obs.Presence {
	case model.PresenceAbsent:
		return "absent"
	case model.PresenceUnreachable:
		return "unreachable: " + obs.Error
	}
	keys := make([]string, 0, len(obs.Attrs))
	for k := range obs.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		if s != "" {
			s += " "
		}
		s += k + "=" + obs.Attrs[k]
	}
	return s
}

func driftOf(decl *model.Declaration, obs model.Observation) string {
	if obs.Presence == model.PresenceUnreachable {
		return "unknown"
	}
	if op := decl.Spec.Diff(obs); op != model.OpNoOp {
		return string(op)
	}
	return "none"
}
