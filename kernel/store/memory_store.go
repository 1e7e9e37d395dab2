package store

import (
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of HistoryStore for testing.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]RunRecord // environment -> runs, oldest first
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string][]RunRecord),
	}
}

func (s *MemoryStore) GetLastRun(environment string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.runs[environment]
	if len(history) == 0 {
		return nil, fmt.Errorf("no runs recorded for environment [%s]", environment)
	}
	last := history[len(history)-1]
	return &last, nil
}

func (s *MemoryStore) SaveRun(environment string, record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.SavedAt = time.Now()
	s.runs[environment] = append(s.runs[environment], *record)
	return nil
}

func (s *MemoryStore) ListEnvironments() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	envs := make([]string, 0, len(s.runs))
	for env := range s.runs {
		envs = append(envs, env)
	}
	return envs, nil
}

// GetHistory returns a copy of the recorded runs, oldest first.
func (s *MemoryStore) GetHistory(environment string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.runs[environment]
	out := make([]RunRecord, len(history))
	copy(out, history)
	return out, nil
}
