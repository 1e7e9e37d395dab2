package model

import "fmt"

// Op is the operation an action performs against the live environment.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpNoOp   Op = "noop"
)

// Action is one planned step. Actions are immutable once planned: the executor
// reads them, it never rewrites them.
type Action struct {
	Op     Op
	Id     ResourceId
	Prior  Observation
	Target ResourceSpec // nil for delete
	Reason string
}

func (a Action) String() string {
	if a.Reason != "" {
		return fmt.Sprintf("%s %s (%s)", a.Op, a.Id, a.Reason)
	}
	return fmt.Sprintf("%s %s", a.Op, a.Id)
}

// Mutates reports whether executing the action touches the live environment.
func (a Action) Mutates() bool {
	return a.Op == OpCreate || a.Op == OpUpdate || a.Op == OpDelete
}
