package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// historyLimit caps how many runs are kept per environment on disk.
const historyLimit = 20

type FileStore struct {
	Root string
	mu   sync.RWMutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

func (s *FileStore) GetLastRun(environment string) (*RunRecord, error) {
	history, err := s.GetHistory(environment)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no runs recorded for environment [%s]", environment)
	}
	last := history[len(history)-1]
	return &last, nil
}

func (s *FileStore) SaveRun(environment string, record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.getHistoryUnsafe(environment)
	if err != nil {
		return err
	}
	record.SavedAt = time.Now()
	history = append(history, *record)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return s.saveHistoryUnsafe(environment, history)
}

func (s *FileStore) ListEnvironments() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.Root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store root: %w", err)
	}
	var envs []string
	for _, entry := range entries {
		if entry.IsDir() {
			envs = append(envs, entry.Name())
		}
	}
	return envs, nil
}

// GetHistory returns all recorded runs for an environment, oldest first.
func (s *FileStore) GetHistory(environment string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getHistoryUnsafe(environment)
}

func (s *FileStore) runsPath(environment string) string {
	return filepath.Join(s.Root, environment, "runs.json")
}

func (s *FileStore) getHistoryUnsafe(environment string) ([]RunRecord, error) {
	data, err := os.ReadFile(s.runsPath(environment))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}

	var history []RunRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse run history: %w", err)
	}
	return history, nil
}

func (s *FileStore) saveHistoryUnsafe(environment string, history []RunRecord) error {
	runsPath := s.runsPath(environment)

	if err := os.MkdirAll(filepath.Dir(runsPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	if err := os.WriteFile(runsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run history: %w", err)
	}

	return nil
}
