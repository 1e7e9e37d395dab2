package model

import (
	"fmt"
	"sort"
	"strings"
)

// CertificateBindingSpec implements ResourceSpec for the binding of an issued
// certificate/key pair to a set of domains. Issuance itself is out of scope;
// the binding converges when the expected files exist and cover the domains.
type CertificateBindingSpec struct {
	Domains  []string `yaml:"domains"`
	CertPath string   `yaml:"cert_path"`
	KeyPath  string   `yaml:"key_path"`
}

func (s *CertificateBindingSpec) Kind() Kind {
	return KindCertificateBinding
}

func (s *CertificateBindingSpec) Validate(name string) error {
	id := ResourceId{Kind: KindCertificateBinding, Name: name}
	if len(s.Domains) == 0 {
		return NewSpecError(id, "at least one domain is required")
	}
	for _, d := range s.Domains {
		if d == "" {
			return NewSpecError(id, "empty domain")
		}
	}
	if s.CertPath == "" {
		return NewSpecError(id, "cert_path is required")
	}
	if s.KeyPath == "" {
		return NewSpecError(id, "key_path is required")
	}
	return nil
}

// DomainSet renders the domain list in canonical comparable form.
func (s *CertificateBindingSpec) DomainSet() string {
	domains := make([]string, len(s.Domains))
	copy(domains, s.Domains)
	for i, d := range domains {
		domains[i] = strings.ToLower(d)
	}
	sort.Strings(domains)
	return strings.Join(domains, ",")
}

func (s *CertificateBindingSpec) Diff(observed Observation) Op {
	if observed.Presence == PresenceAbsent {
		return OpCreate
	}
	if observed.Attr("domains") != s.DomainSet() ||
		observed.Attr("cert_path") != s.CertPath ||
		observed.Attr("key_path") != s.KeyPath {
		return OpUpdate
	}
	return OpNoOp
}

func (s *CertificateBindingSpec) Describe() string {
	return fmt.Sprintf("certificate for %s", strings.Join(s.Domains, ", "))
}

func init() {
	RegisterResourceType(KindCertificateBinding, func() ResourceSpec { return &CertificateBindingSpec{} })
}
