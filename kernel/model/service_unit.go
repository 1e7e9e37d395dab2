package model

import (
	"fmt"
	"strconv"
)

// ServiceUnitSpec implements ResourceSpec for a service-manager unit. The
// declaration name is the unit name (without the ".service" suffix).
type ServiceUnitSpec struct {
	Enabled bool `yaml:"enabled"`
	Running bool `yaml:"running"`
}

func (s *ServiceUnitSpec) Kind() Kind {
	return KindServiceUnit
}

func (s *ServiceUnitSpec) Validate(name string) error {
	// Both fields default to false, which is a legal desired state
	// (installed but stopped and disabled).
	return nil
}

func (s *ServiceUnitSpec) Diff(observed Observation) Op {
	if observed.Presence == PresenceAbsent {
		return OpCreate
	}
	// A mismatch on either field converges via a single update.
	if observed.Attr("enabled") != strconv.FormatBool(s.Enabled) ||
		observed.Attr("running") != strconv.FormatBool(s.Running) {
		return OpUpdate
	}
	return OpNoOp
}

func (s *ServiceUnitSpec) Describe() string {
	state := "stopped"
	if s.Running {
		state = "running"
	}
	boot := "disabled"
	if s.Enabled {
		boot = "enabled"
	}
	return fmt.Sprintf("service %s, %s at boot", state, boot)
}

func init() {
	RegisterResourceType(KindServiceUnit, func() ResourceSpec { return &ServiceUnitSpec{} })
}
