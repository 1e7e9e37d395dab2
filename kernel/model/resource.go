package model

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies a reconcilable resource type.
type Kind string

const (
	KindDnsRecord          Kind = "dns-record"
	KindServiceUnit        Kind = "service-unit"
	KindProxyRoute         Kind = "proxy-route"
	KindCertificateBinding Kind = "certificate-binding"
	KindEnvFile            Kind = "env-file"
)

// ResourceId uniquely identifies a resource within a desired-state document.
// Rendered as "kind:name", e.g. "dns-record:www".
type ResourceId struct {
	Kind Kind
	Name string
}

func (id ResourceId) String() string {
	return string(id.Kind) + ":" + id.Name
}

func ParseResourceId(s string) (ResourceId, error) {
	idx := strings.Index(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return ResourceId{}, errors.Errorf("malformed resource id '%s', expected kind:name", s)
	}
	return ResourceId{Kind: Kind(s[:idx]), Name: s[idx+1:]}, nil
}

// ResourceSpec is the desired state of a single resource. Implementations are
// registered by kind in the resource registry and decoded from the document's
// spec block.
type ResourceSpec interface {
	Kind() Kind

	// Validate reports malformed declarations. It runs at load time; a spec
	// that passes Validate never fails for shape reasons at apply time.
	Validate(name string) error

	// Diff compares the desired spec against an observation and yields the
	// operation needed to converge. The observation is never Unreachable
	// here; planning skips unreachable resources before diffing.
	Diff(observed Observation) Op

	// Describe returns a short human-readable summary of the desired state.
	Describe() string
}

// Declaration binds a named spec and its ordering constraints.
type Declaration struct {
	Name  string
	Spec  ResourceSpec
	After []ResourceId
}

func (d *Declaration) Id() ResourceId {
	return ResourceId{Kind: d.Spec.Kind(), Name: d.Name}
}

// DesiredState is one loaded desired-state document. Resources keeps
// declaration order, which planning uses as the topological tie-break.
// Checksum is the hex sha256 of the source document, stamped by the loader
// and carried into the persisted run record.
type DesiredState struct {
	Environment string
	Prune       bool
	Checksum    string
	Resources   []*Declaration

	byId map[ResourceId]*Declaration
}

func (s *DesiredState) Lookup(id ResourceId) (*Declaration, bool) {
	d, ok := s.byId[id]
	return d, ok
}

func (s *DesiredState) Ids() []ResourceId {
	ids := make([]ResourceId, 0, len(s.Resources))
	for _, d := range s.Resources {
		ids = append(ids, d.Id())
	}
	return ids
}

// Validate checks document-level invariants: unique identifiers, resolvable
// after references, and per-spec shape. Cycle detection is the dependency
// graph's job and runs separately.
func (s *DesiredState) Validate() error {
	s.byId = make(map[ResourceId]*Declaration, len(s.Resources))
	for _, d := range s.Resources {
		if d.Name == "" {
			return NewSpecError(d.Id(), "resource name is required")
		}
		id := d.Id()
		if _, dup := s.byId[id]; dup {
			return NewSpecError(id, "duplicate resource id")
		}
		s.byId[id] = d
	}
	for _, d := range s.Resources {
		if err := d.Spec.Validate(d.Name); err != nil {
			return err
		}
		for _, dep := range d.After {
			if _, ok := s.byId[dep]; !ok {
				return NewSpecError(d.Id(), "after references unknown resource '%s'", dep)
			}
			if dep == d.Id() {
				return NewSpecError(d.Id(), "resource cannot depend on itself")
			}
		}
	}
	return nil
}
