package subcmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"

	"github.com/edgeops/converge/kernel/clients"
	"github.com/edgeops/converge/kernel/model"
	"github.com/edgeops/converge/kernel/planner"
)

// buildClients wires the external collaborators for a document. The DNS
// client is only constructed when the document declares DNS resources or
// opts into prune, so purely host-local documents need no provider config.
func buildClients(cfg *model.Config, state *model.DesiredState) (clients.Set, error) {
	set := clients.Set{
		Health: clients.NewHealthChecker(),
	}

	host, err := clients.NewHost(cfg.Host)
	if err != nil {
		return set, errors.Wrap(err, "unable to connect to managed host")
	}
	set.Host = host

	if needsDns(state) {
		dns, err := clients.NewRoute53DNS(cfg.Dns)
		if err != nil {
			_ = host.Close()
			return set, errors.Wrap(err, "unable to create dns provider client")
		}
		set.Dns = dns
	}
	return set, nil
}

// workDir mirrors the engine's lock-file default so run history and locks
// land in the same tree.
func workDir(cfg *model.Config) string {
	if cfg.WorkDir != "" {
		return cfg.WorkDir
	}
	return filepath.Join(os.TempDir(), "converge")
}

func needsDns(state *model.DesiredState) bool {
	if state.Prune {
		return true
	}
	for _, decl := range state.Resources {
		if decl.Spec.Kind() == model.KindDnsRecord {
			return true
		}
	}
	return false
}

// interruptibleContext cancels on the first SIGINT/SIGTERM. In-flight applies
// finish; a second signal kills the process the usual way.
func interruptibleContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func renderPlanTable(plan *planner.Plan) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Resource", "Action", "Detail"})
	for _, action := range plan.Ordered {
		t.AppendRow(table.Row{action.Id.String(), string(action.Op), action.Reason})
	}
	for _, action := range plan.Pruned {
		t.AppendRow(table.Row{action.Id.String(), string(action.Op), action.Reason})
	}
	skipped := make([]model.ResourceId, 0, len(plan.Skips))
	for id := range plan.Skips {
		skipped = append(skipped, id)
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].String() < skipped[j].String() })
	for _, id := range skipped {
		t.AppendRow(table.Row{id.String(), "skip", skipDetail(plan.Skips[id])})
	}
	for _, id := range plan.Unmanaged {
		t.AppendRow(table.Row{id.String(), "unmanaged", "not declared; prune disabled"})
	}
	return t.Render()
}

func renderReportTable(report *model.ConvergenceReport) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Resource", "Status", "Op", "Reason", "Detail"})
	for _, rs := range report.Resources {
		t.AppendRow(table.Row{rs.Id.String(), string(rs.Status), string(rs.Op), rs.Reason, rs.Detail})
	}
	return t.Render()
}

func skipDetail(status model.ResourceStatus) string {
	detail := status.Reason
	for i, id := range status.BlockedBy {
		if i == 0 {
			detail += "="
		} else {
			detail += ","
		}
		detail += id.String()
	}
	if status.Detail != "" {
		detail += ": " + status.Detail
	}
	return detail
}
