package model

import "time"

// RunState tracks the reconciler's phase. Converged and PartiallyFailed are
// terminal; a run never restarts itself.
type RunState string

const (
	RunLoaded          RunState = "Loaded"
	RunProbing         RunState = "Probing"
	RunPlanning        RunState = "Planning"
	RunExecuting       RunState = "Executing"
	RunVerifying       RunState = "Verifying"
	RunConverged       RunState = "Converged"
	RunPartiallyFailed RunState = "PartiallyFailed"
)

// StatusCode is the terminal per-resource outcome of a run.
type StatusCode string

const (
	StatusConverged StatusCode = "Converged"
	StatusFailed    StatusCode = "Failed"
	StatusSkipped   StatusCode = "Skipped"
	StatusUnmanaged StatusCode = "Unmanaged"
)

// Machine-readable failure/skip reason codes surfaced in reports.
const (
	ReasonUnreachable           = "Unreachable"
	ReasonLocalInspectionFailed = "LocalInspectionFailed"
	ReasonTransient             = "Transient"
	ReasonPermanent             = "Permanent"
	ReasonVerificationMismatch  = "VerificationMismatch"
	ReasonBlocked               = "blocked-by"
	ReasonCancelled             = "cancelled"
)

// ResourceStatus is one resource's line in the convergence report.
type ResourceStatus struct {
	Id        ResourceId   `json:"id"`
	Status    StatusCode   `json:"status"`
	Op        Op           `json:"op,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Detail    string       `json:"detail,omitempty"`
	BlockedBy []ResourceId `json:"blockedBy,omitempty"`
	Attempts  int          `json:"attempts,omitempty"`
}

// ConvergenceReport is the final output of one reconciliation run. It is
// owned by the reconciler and never mutated after the run reaches a terminal
// state.
type ConvergenceReport struct {
	Environment string           `json:"environment"`
	State       RunState         `json:"state"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  time.Time        `json:"finishedAt"`
	Resources   []ResourceStatus `json:"resources"`
}

func (r *ConvergenceReport) Success() bool {
	return r.State == RunConverged
}

func (r *ConvergenceReport) Counts() (converged, failed, skipped, unmanaged int) {
	for _, rs := range r.Resources {
		switch rs.Status {
		case StatusConverged:
			converged++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		case StatusUnmanaged:
			unmanaged++
		}
	}
	return
}
