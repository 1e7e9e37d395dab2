// Package planner computes the ordered action plan that converges observed
// state onto desired state. Planning is pure: no I/O, no clocks, no
// collaborator calls.
package planner

import (
	"github.com/edgeops/converge/kernel/graph"
	"github.com/edgeops/converge/kernel/model"
)

// Plan is the full output of one planning pass.
type Plan struct {
	// Ordered holds one action per plannable declared resource, in
	// topological order. NoOp actions are kept so reports can show them.
	Ordered []model.Action

	// Skips holds resources that receive no action this run: unreachable
	// probes and their transitive dependents.
	Skips map[model.ResourceId]model.ResourceStatus

	// Pruned holds delete actions for live resources absent from the
	// document, only when the document opts into prune mode.
	Pruned []model.Action

	// Unmanaged lists live-but-undeclared resources when prune is off.
	Unmanaged []model.ResourceId
}

// Divergent counts the actions that would mutate the environment.
func (p *Plan) Divergent() int {
	n := 0
	for _, a := range p.Ordered {
		if a.Mutates() {
			n++
		}
	}
	return n + len(p.Pruned)
}

// Actions returns the mutating declared-resource actions plus prune deletes.
func (p *Plan) Actions() []model.Action {
	var out []model.Action
	for _, a := range p.Ordered {
		if a.Mutates() {
			out = append(out, a)
		}
	}
	return append(out, p.Pruned...)
}

// Compute plans the run. The observed map must contain an observation for
// every declared resource; stray holds observations of live resources that
// are not declared (candidates for prune/unmanaged reporting).
func Compute(state *model.DesiredState, g *graph.Graph, observed map[model.ResourceId]model.Observation, stray []model.Observation) *Plan {
	plan := &Plan{
		Skips: make(map[model.ResourceId]model.ResourceStatus),
	}

	// A resource is doomed when it cannot converge this run; everything
	// after it is skipped rather than attempted.
	doomed := make(map[model.ResourceId]bool)

	for _, id := range g.TopoOrder() {
		decl, _ := state.Lookup(id)

		var blockedBy []model.ResourceId
		for _, prereq := range g.Prerequisites(id) {
			if doomed[prereq] {
				blockedBy = append(blockedBy, prereq)
			}
		}
		if len(blockedBy) > 0 {
			doomed[id] = true
			plan.Skips[id] = model.ResourceStatus{
				Id:        id,
				Status:    model.StatusSkipped,
				Reason:    model.ReasonBlocked,
				BlockedBy: blockedBy,
			}
			continue
		}

		obs := observed[id]
		if obs.Presence == model.PresenceUnreachable {
			doomed[id] = true
			reason := model.ReasonUnreachable
			if obs.ErrorKind == model.ProbeLocalInspectionFailed {
				reason = model.ReasonLocalInspectionFailed
			}
			plan.Skips[id] = model.ResourceStatus{
				Id:     id,
				Status: model.StatusSkipped,
				Reason: reason,
				Detail: obs.Error,
			}
			continue
		}

		op := decl.Spec.Diff(obs)
		action := model.Action{
			Op:     op,
			Id:     id,
			Prior:  obs,
			Target: decl.Spec,
		}
		if op != model.OpNoOp {
			action.Reason = decl.Spec.Describe()
		}
		// Dependents of a planned delete never converge on top of it.
		if op == model.OpDelete {
			doomed[id] = true
		}
		plan.Ordered = append(plan.Ordered, action)
	}

	for _, obs := range stray {
		if _, declared := state.Lookup(obs.Id); declared {
			continue
		}
		if state.Prune {
			plan.Pruned = append(plan.Pruned, model.Action{
				Op:     model.OpDelete,
				Id:     obs.Id,
				Prior:  obs,
				Reason: "not declared, prune enabled",
			})
		} else {
			plan.Unmanaged = append(plan.Unmanaged, obs.Id)
		}
	}

	return plan
}
