package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openziti/foundation/v2/stringz"
)

// DnsRecordSpec implements ResourceSpec for a single DNS record. The record
// name is the declaration name; the zone comes from provider configuration.
type DnsRecordSpec struct {
	RecordType string `yaml:"record_type"`
	Value      string `yaml:"value"`
	TTL        int    `yaml:"ttl"`
}

var dnsRecordTypes = []string{"A", "AAAA", "CNAME", "NS", "TXT"}

const DefaultDnsTTL = 300

func (s *DnsRecordSpec) Kind() Kind {
	return KindDnsRecord
}

func (s *DnsRecordSpec) Validate(name string) error {
	id := ResourceId{Kind: KindDnsRecord, Name: name}
	if s.RecordType == "" {
		return NewSpecError(id, "record_type is required")
	}
	upper := strings.ToUpper(s.RecordType)
	if !stringz.Contains(dnsRecordTypes, upper) {
		return NewSpecError(id, "unsupported record_type '%s'", s.RecordType)
	}
	s.RecordType = upper
	if s.Value == "" {
		return NewSpecError(id, "value is required")
	}
	if s.TTL < 0 {
		return NewSpecError(id, "ttl must not be negative")
	}
	if s.TTL == 0 {
		s.TTL = DefaultDnsTTL
	}
	return nil
}

func (s *DnsRecordSpec) Diff(observed Observation) Op {
	if observed.Presence == PresenceAbsent {
		return OpCreate
	}
	// A TTL-only change is still an update.
	if observed.Attr("type") != s.RecordType ||
		observed.Attr("value") != s.Value ||
		observed.Attr("ttl") != strconv.Itoa(s.TTL) {
		return OpUpdate
	}
	return OpNoOp
}

func (s *DnsRecordSpec) Describe() string {
	return fmt.Sprintf("%s record -> %s (ttl %d)", s.RecordType, s.Value, s.TTL)
}

func init() {
	RegisterResourceType(KindDnsRecord, func() ResourceSpec { return &DnsRecordSpec{} })
}
