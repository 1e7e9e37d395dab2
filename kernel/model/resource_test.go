package model

import (
	"errors"
	"testing"
)

func TestParseResourceId(t *testing.T) {
	id, err := ParseResourceId("dns-record:www")
	if err != nil {
		t.Fatalf("ParseResourceId failed: %v", err)
	}
	if id.Kind != KindDnsRecord || id.Name != "www" {
		t.Errorf("expected dns-record:www, got %s", id)
	}
}

func TestParseResourceId_NameWithColon(t *testing.T) {
	// Only the first colon separates kind from name.
	id, err := ParseResourceId("env-file:app:main")
	if err != nil {
		t.Fatalf("ParseResourceId failed: %v", err)
	}
	if id.Name != "app:main" {
		t.Errorf("expected name 'app:main', got '%s'", id.Name)
	}
}

func TestParseResourceId_Malformed(t *testing.T) {
	for _, s := range []string{"", "www", ":www", "dns-record:"} {
		if _, err := ParseResourceId(s); err == nil {
			t.Errorf("expected error for '%s'", s)
		}
	}
}

func TestDesiredState_Validate_DuplicateId(t *testing.T) {
	state := &DesiredState{
		Environment: "test",
		Resources: []*Declaration{
			{Name: "www", Spec: &DnsRecordSpec{RecordType: "A", Value: "192.0.2.10"}},
			{Name: "www", Spec: &DnsRecordSpec{RecordType: "A", Value: "192.0.2.11"}},
		},
	}
	err := state.Validate()
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if !errors.Is(err, ErrInvalidResourceSpec) {
		t.Errorf("expected ErrInvalidResourceSpec, got %v", err)
	}
}

func TestDesiredState_Validate_SameNameDifferentKind(t *testing.T) {
	// Identity is kind:name; the same name across kinds is legal.
	state := &DesiredState{
		Environment: "test",
		Resources: []*Declaration{
			{Name: "api", Spec: &DnsRecordSpec{RecordType: "A", Value: "192.0.2.10"}},
			{Name: "api", Spec: &ServiceUnitSpec{Running: true}},
		},
	}
	if err := state.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestDesiredState_Validate_UnknownAfter(t *testing.T) {
	state := &DesiredState{
		Environment: "test",
		Resources: []*Declaration{
			{
				Name:  "web",
				Spec:  &ProxyRouteSpec{ServerName: "web.example.com", Upstream: "http://127.0.0.1:8080"},
				After: []ResourceId{{Kind: KindServiceUnit, Name: "missing"}},
			},
		},
	}
	err := state.Validate()
	if err == nil {
		t.Fatal("expected unknown after-reference error")
	}
	if !errors.Is(err, ErrInvalidResourceSpec) {
		t.Errorf("expected ErrInvalidResourceSpec, got %v", err)
	}
}

func TestDesiredState_Validate_SelfDependency(t *testing.T) {
	state := &DesiredState{
		Environment: "test",
		Resources: []*Declaration{
			{
				Name:  "api",
				Spec:  &ServiceUnitSpec{Running: true},
				After: []ResourceId{{Kind: KindServiceUnit, Name: "api"}},
			},
		},
	}
	if err := state.Validate(); err == nil {
		t.Fatal("expected self-dependency error")
	}
}

func TestDesiredState_Lookup(t *testing.T) {
	decl := &Declaration{Name: "www", Spec: &DnsRecordSpec{RecordType: "A", Value: "192.0.2.10"}}
	state := &DesiredState{Environment: "test", Resources: []*Declaration{decl}}
	if err := state.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	found, ok := state.Lookup(ResourceId{Kind: KindDnsRecord, Name: "www"})
	if !ok || found != decl {
		t.Error("expected Lookup to find the declaration")
	}
	if _, ok := state.Lookup(ResourceId{Kind: KindDnsRecord, Name: "other"}); ok {
		t.Error("expected Lookup miss for undeclared id")
	}
}
