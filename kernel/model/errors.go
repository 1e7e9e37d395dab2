package model

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidResourceSpec = errors.New("invalid resource spec")
	ErrCyclicDependency    = errors.New("cyclic dependency")
)

// SpecError is a load-time validation failure. It is fatal to the run before
// any probe or mutation happens.
type SpecError struct {
	Id  ResourceId
	Msg string
}

func NewSpecError(id ResourceId, format string, args ...any) *SpecError {
	return &SpecError{Id: id, Msg: fmt.Sprintf(format, args...)}
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidResourceSpec.Error(), e.Id, e.Msg)
}

func (e *SpecError) Unwrap() error { return ErrInvalidResourceSpec }

// CycleError reports a dependency cycle with one deterministic witness path.
type CycleError struct {
	Path []ResourceId
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCyclicDependency.Error()
	}
	s := ErrCyclicDependency.Error() + ":"
	for i, id := range e.Path {
		if i > 0 {
			s += " ->"
		}
		s += " " + id.String()
	}
	return s
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

// ProbeErrorKind distinguishes a dead network path from a failed local
// inspection. Only the former is retried.
type ProbeErrorKind string

const (
	ProbeUnreachable           ProbeErrorKind = "Unreachable"
	ProbeLocalInspectionFailed ProbeErrorKind = "LocalInspectionFailed"
)

type ProbeError struct {
	Id    ResourceId
	Kind  ProbeErrorKind
	Cause error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s failed (%s): %v", e.Id, e.Kind, e.Cause)
}

func (e *ProbeError) Unwrap() error { return e.Cause }

// ExecErrorKind splits apply failures into retryable and terminal.
type ExecErrorKind string

const (
	ExecTransient ExecErrorKind = "Transient"
	ExecPermanent ExecErrorKind = "Permanent"
)

type ExecError struct {
	Id    ResourceId
	Kind  ExecErrorKind
	Cause error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("apply %s failed (%s): %v", e.Id, e.Kind, e.Cause)
}

func (e *ExecError) Unwrap() error { return e.Cause }

// Transientf builds a retryable execution error.
func Transientf(id ResourceId, format string, args ...any) *ExecError {
	return &ExecError{Id: id, Kind: ExecTransient, Cause: errors.Errorf(format, args...)}
}

// Permanentf builds a terminal execution error. It is reported immediately,
// never retried.
func Permanentf(id ResourceId, format string, args ...any) *ExecError {
	return &ExecError{Id: id, Kind: ExecPermanent, Cause: errors.Errorf(format, args...)}
}

// IsTransient reports whether err should be retried by the executor.
func IsTransient(err error) bool {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.Kind == ExecTransient
	}
	return false
}
