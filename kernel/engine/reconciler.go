package engine

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/semaphore"

	"github.com/edgeops/converge/kernel/executor"
	"github.com/edgeops/converge/kernel/graph"
	"github.com/edgeops/converge/kernel/metrics"
	"github.com/edgeops/converge/kernel/model"
	"github.com/edgeops/converge/kernel/planner"
	"github.com/edgeops/converge/kernel/store"
	"github.com/michaelquigley/pfxlog"
)

// Prober observes live state. Implemented by probe.Prober; tests substitute
// fakes.
type Prober interface {
	Observe(ctx context.Context, decl *model.Declaration) model.Observation
	ListStray(ctx context.Context, state *model.DesiredState) []model.Observation
}

// Applier executes one planned action. Implemented by executor.Executor.
type Applier interface {
	Apply(ctx context.Context, action model.Action) executor.Result
}

type Reconciler struct {
	Prober  Prober
	Applier Applier
	Store   store.RunStore
	Metrics *metrics.Reporter
}

func NewReconciler(prober Prober, applier Applier) *Reconciler {
	return &Reconciler{Prober: prober, Applier: applier}
}

func (r *Reconciler) WithStore(s store.RunStore) *Reconciler {
	r.Store = s
	return r
}

func (r *Reconciler) WithMetrics(m *metrics.Reporter) *Reconciler {
	r.Metrics = m
	return r
}

// ProbeAll gathers observations for every declared resource concurrently,
// bounded by the configured worker count. A failed probe becomes an
// Unreachable observation; it never halts the phase.
func (r *Reconciler) ProbeAll(ctx context.Context, mctx *model.Context) map[model.ResourceId]model.Observation {
	state := mctx.GetState()
	observations := cmap.New[model.Observation]()
	sem := semaphore.NewWeighted(int64(mctx.GetConfig().Workers))

	for _, decl := range state.Resources {
		decl := decl
		if err := sem.Acquire(ctx, 1); err != nil {
			observations.Set(decl.Id().String(), model.Unreachable(decl.Id(), model.ProbeUnreachable, err))
			continue
		}
		go func() {
			defer sem.Release(1)
			observations.Set(decl.Id().String(), r.Prober.Observe(ctx, decl))
		}()
	}
	// Drain the pool; tolerate a cancelled context so partial results
	// still surface as unreachable observations.
	_ = sem.Acquire(context.Background(), int64(mctx.GetConfig().Workers))

	out := make(map[model.ResourceId]model.Observation, len(state.Resources))
	for _, id := range state.Ids() {
		if obs, ok := observations.Get(id.String()); ok {
			out[id] = obs
		} else {
			out[id] = model.Unreachable(id, model.ProbeUnreachable, ctx.Err())
		}
	}
	return out
}

// Plan validates the document, probes, and computes the action plan without
// mutating anything. This is the dry-run surface the CLI's plan command uses.
func (r *Reconciler) Plan(ctx context.Context, mctx *model.Context) (*planner.Plan, map[model.ResourceId]model.Observation, error) {
	state := mctx.GetState()
	if err := state.Validate(); err != nil {
		return nil, nil, err
	}
	g, err := graph.Build(state)
	if err != nil {
		return nil, nil, err
	}

	observed := r.ProbeAll(ctx, mctx)
	stray := r.Prober.ListStray(ctx, state)
	return planner.Compute(state, g, observed, stray), observed, nil
}

// Reconcile drives one full run: Loaded -> Probing -> Planning -> Executing
// -> Verifying -> {Converged, PartiallyFailed}. Validation failure terminates
// before any side effect; per-resource failures degrade only their dependents.
func (r *Reconciler) Reconcile(ctx context.Context, mctx *model.Context) (*model.ConvergenceReport, error) {
	state := mctx.GetState()
	cfg := mctx.GetConfig()
	log := pfxlog.Logger().WithField("environment", state.Environment)

	report := &model.ConvergenceReport{
		Environment: state.Environment,
		State:       model.RunLoaded,
		StartedAt:   time.Now(),
	}
	finish := func(runState model.RunState) *model.ConvergenceReport {
		report.State = runState
		report.FinishedAt = time.Now()
		r.record(ctx, report, state.Checksum)
		return report
	}

	if err := state.Validate(); err != nil {
		log.WithError(err).Error("desired-state validation failed")
		return finish(model.RunPartiallyFailed), err
	}
	g, err := graph.Build(state)
	if err != nil {
		log.WithError(err).Error("dependency validation failed")
		return finish(model.RunPartiallyFailed), err
	}

	lock, err := acquireRunLock(cfg.WorkDir, state.Environment)
	if err != nil {
		log.WithError(err).Error("unable to acquire run lock")
		return finish(model.RunPartiallyFailed), err
	}
	defer lock.release()

	report.State = model.RunProbing
	log.Infof("probing %d resource(s)", len(state.Resources))
	observed := r.ProbeAll(ctx, mctx)
	stray := r.Prober.ListStray(ctx, state)

	report.State = model.RunPlanning
	plan := planner.Compute(state, g, observed, stray)
	log.Infof("planned %d divergent action(s)", plan.Divergent())

	report.State = model.RunExecuting
	statuses := r.execute(ctx, mctx, g, plan)

	report.State = model.RunVerifying
	r.verify(ctx, mctx, state, statuses)

	assembleReport(report, state, plan, statuses)
	if allConverged(report) {
		log.Info("environment converged")
		return finish(model.RunConverged), nil
	}
	log.Warn("environment partially failed")
	return finish(model.RunPartiallyFailed), nil
}

func (r *Reconciler) record(ctx context.Context, report *model.ConvergenceReport, documentChecksum string) {
	if r.Store != nil {
		record := &store.RunRecord{Report: *report, DocumentChecksum: documentChecksum}
		if err := r.Store.SaveRun(report.Environment, record); err != nil {
			pfxlog.Logger().WithError(err).Warn("unable to persist run record")
		}
	}
	r.Metrics.ReportRun(ctx, report)
}

// execute dispatches mutating actions over the dependency graph with a
// bounded worker pool. An action runs only after every prerequisite has
// converged; failures skip all transitive dependents; cancellation lets
// in-flight applies finish and skips the rest.
func (r *Reconciler) execute(ctx context.Context, mctx *model.Context, g *graph.Graph, plan *planner.Plan) map[model.ResourceId]*model.ResourceStatus {
	statuses := make(map[model.ResourceId]*model.ResourceStatus)
	pending := make(map[model.ResourceId]model.Action)

	for id, skip := range plan.Skips {
		s := skip
		statuses[id] = &s
	}
	for _, action := range plan.Ordered {
		if !action.Mutates() {
			// Already converged at probe time; gates dependents immediately.
			statuses[action.Id] = &model.ResourceStatus{Id: action.Id, Status: model.StatusConverged, Op: model.OpNoOp}
			continue
		}
		pending[action.Id] = action
	}
	for _, action := range plan.Pruned {
		pending[action.Id] = action
	}

	sem := semaphore.NewWeighted(int64(mctx.GetConfig().Workers))
	results := make(chan executor.Result)
	inFlight := 0
	cancelled := false

	skipPending := func(reason string, blockedBy []model.ResourceId) func(model.ResourceId) {
		return func(id model.ResourceId) {
			if _, ok := pending[id]; !ok {
				return
			}
			delete(pending, id)
			statuses[id] = &model.ResourceStatus{
				Id:        id,
				Status:    model.StatusSkipped,
				Reason:    reason,
				BlockedBy: blockedBy,
			}
		}
	}

	dispatchReady := func() {
		for id, action := range pending {
			ready := true
			for _, prereq := range g.Prerequisites(id) {
				status, ok := statuses[prereq]
				if !ok || status.Status != model.StatusConverged {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			delete(pending, id)
			inFlight++
			action := action
			go func() {
				_ = sem.Acquire(context.Background(), 1)
				defer sem.Release(1)
				if ctx.Err() != nil {
					// Queued behind the pool when cancellation hit; never started.
					results <- executor.Result{Id: action.Id, Op: action.Op, Cancelled: true}
					return
				}
				results <- r.Applier.Apply(ctx, action)
			}()
		}
	}

	handle := func(res executor.Result) {
		inFlight--
		if res.Cancelled {
			statuses[res.Id] = &model.ResourceStatus{Id: res.Id, Status: model.StatusSkipped, Op: res.Op, Reason: model.ReasonCancelled}
			return
		}
		if res.Converged() {
			statuses[res.Id] = &model.ResourceStatus{Id: res.Id, Status: model.StatusConverged, Op: res.Op, Attempts: res.Attempts}
			return
		}
		reason := model.ReasonPermanent
		if res.Err.Kind == model.ExecTransient {
			reason = model.ReasonTransient
		}
		statuses[res.Id] = &model.ResourceStatus{
			Id:       res.Id,
			Status:   model.StatusFailed,
			Op:       res.Op,
			Reason:   reason,
			Detail:   res.Err.Cause.Error(),
			Attempts: res.Attempts,
		}
		skip := skipPending(model.ReasonBlocked, []model.ResourceId{res.Id})
		for _, dependent := range g.Dependents(res.Id) {
			skip(dependent)
		}
	}

	for {
		if !cancelled {
			select {
			case <-ctx.Done():
				cancelled = true
			default:
			}
		}
		if cancelled {
			skip := skipPending(model.ReasonCancelled, nil)
			for id := range pending {
				skip(id)
			}
		} else {
			dispatchReady()
		}

		if len(pending) == 0 && inFlight == 0 {
			break
		}

		if inFlight > 0 {
			if cancelled {
				handle(<-results)
				continue
			}
			select {
			case res := <-results:
				handle(res)
			case <-ctx.Done():
				cancelled = true
			}
			continue
		}

		// Nothing running and nothing dispatchable: every remaining action
		// waits on a prerequisite that will never converge.
		for id := range pending {
			var blockedBy []model.ResourceId
			for _, prereq := range g.Prerequisites(id) {
				if status, ok := statuses[prereq]; ok && status.Status != model.StatusConverged {
					blockedBy = append(blockedBy, prereq)
				}
			}
			skipPending(model.ReasonBlocked, blockedBy)(id)
		}
	}

	return statuses
}

// verify re-probes every resource whose action mutated the environment and
// demotes it to Failed(VerificationMismatch) when the live state still
// disagrees with the document.
func (r *Reconciler) verify(ctx context.Context, mctx *model.Context, state *model.DesiredState, statuses map[model.ResourceId]*model.ResourceStatus) {
	if ctx.Err() != nil {
		// A cancelled run already skipped its pending work; re-probing now
		// would demote genuinely converged resources for the wrong reason.
		return
	}
	for _, decl := range state.Resources {
		status, ok := statuses[decl.Id()]
		if !ok || status.Status != model.StatusConverged || status.Op == model.OpNoOp {
			continue
		}
		obs := r.Prober.Observe(ctx, decl)
		if obs.Presence == model.PresenceUnreachable {
			status.Status = model.StatusFailed
			status.Reason = model.ReasonVerificationMismatch
			status.Detail = "re-probe failed: " + obs.Error
			continue
		}
		if status.Op == model.OpDelete {
			if obs.Presence == model.PresencePresent {
				status.Status = model.StatusFailed
				status.Reason = model.ReasonVerificationMismatch
				status.Detail = "resource still present after delete"
			}
			continue
		}
		if op := decl.Spec.Diff(obs); op != model.OpNoOp {
			status.Status = model.StatusFailed
			status.Reason = model.ReasonVerificationMismatch
			status.Detail = "live state still diverges after " + string(status.Op)
		}
	}
}

func assembleReport(report *model.ConvergenceReport, state *model.DesiredState, plan *planner.Plan, statuses map[model.ResourceId]*model.ResourceStatus) {
	for _, decl := range state.Resources {
		if status, ok := statuses[decl.Id()]; ok {
			report.Resources = append(report.Resources, *status)
		}
	}
	for _, action := range plan.Pruned {
		if status, ok := statuses[action.Id]; ok {
			report.Resources = append(report.Resources, *status)
		}
	}
	for _, id := range plan.Unmanaged {
		report.Resources = append(report.Resources, model.ResourceStatus{
			Id:     id,
			Status: model.StatusUnmanaged,
		})
	}
}

// allConverged ignores unmanaged resources; they are reported, not owned.
func allConverged(report *model.ConvergenceReport) bool {
	for _, rs := range report.Resources {
		if rs.Status == model.StatusFailed || rs.Status == model.StatusSkipped {
			return false
		}
	}
	return true
}
