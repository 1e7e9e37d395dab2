package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

var (
	envLocksMu sync.Mutex
	envLocks   = make(map[string]*sync.Mutex)
)

// runLock guarantees at most one reconciliation per environment: a
// process-local mutex guards concurrent runs inside this process, an
// exclusively-created lock file guards runs from other processes.
type runLock struct {
	mu   *sync.Mutex
	path string
}

func acquireRunLock(workDir, environment string) (*runLock, error) {
	envLocksMu.Lock()
	mu, ok := envLocks[environment]
	if !ok {
		mu = &sync.Mutex{}
		envLocks[environment] = mu
	}
	envLocksMu.Unlock()

	if !mu.TryLock() {
		return nil, errors.Errorf("a reconciliation for environment [%s] is already running", environment)
	}

	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "converge")
	}
	dir := filepath.Join(workDir, environment)
	if err := os.MkdirAll(dir, 0755); err != nil {
		mu.Unlock()
		return nil, errors.Wrap(err, "unable to create environment work dir")
	}

	path := filepath.Join(dir, ".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		mu.Unlock()
		if os.IsExist(err) {
			return nil, errors.Errorf("environment [%s] is locked by another process (%s)", environment, path)
		}
		return nil, errors.Wrap(err, "unable to create lock file")
	}
	_, _ = fmt.Fprintln(f, strconv.Itoa(os.Getpid()))
	_ = f.Close()

	return &runLock{mu: mu, path: path}, nil
}

func (l *runLock) release() {
	_ = os.Remove(l.path)
	l.mu.Unlock()
}
