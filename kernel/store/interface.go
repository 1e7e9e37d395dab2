package store

import (
	"time"

	"github.com/edgeops/converge/kernel/model"
)

// RunStore persists the outcome of reconciliation runs per environment.
type RunStore interface {
	GetLastRun(environment string) (*RunRecord, error)
	SaveRun(environment string, record *RunRecord) error
	ListEnvironments() ([]string, error)
}

// HistoryStore extends RunStore with access to prior runs.
type HistoryStore interface {
	RunStore
	GetHistory(environment string) ([]RunRecord, error)
}

// RunRecord is one saved reconciliation outcome.
type RunRecord struct {
	Report           model.ConvergenceReport `json:"report"`
	DocumentChecksum string                  `json:"documentChecksum,omitempty"`
	SavedAt          time.Time               `json:"savedAt"`
}
