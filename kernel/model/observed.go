package model

import "time"

// Presence classifies what a probe found. Absent and Unreachable are distinct:
// an absent resource can be planned (Create), an unreachable one cannot.
type Presence string

const (
	PresencePresent     Presence = "present"
	PresenceAbsent      Presence = "absent"
	PresenceUnreachable Presence = "unreachable"
)

// Observation is the probed live state of one resource. Attrs carries the
// variant-specific observed values the spec's Diff compares against.
type Observation struct {
	Id        ResourceId
	Presence  Presence
	Attrs     map[string]string
	Error     string
	ErrorKind ProbeErrorKind
	ProbedAt  time.Time
}

func Present(id ResourceId, attrs map[string]string) Observation {
	return Observation{Id: id, Presence: PresencePresent, Attrs: attrs, ProbedAt: time.Now()}
}

func Absent(id ResourceId) Observation {
	return Observation{Id: id, Presence: PresenceAbsent, ProbedAt: time.Now()}
}

func Unreachable(id ResourceId, kind ProbeErrorKind, err error) Observation {
	obs := Observation{Id: id, Presence: PresenceUnreachable, ErrorKind: kind, ProbedAt: time.Now()}
	if err != nil {
		obs.Error = err.Error()
	}
	return obs
}

func (o Observation) Attr(key string) string {
	if o.Attrs == nil {
		return ""
	}
	return o.Attrs[key]
}
