package model

import (
	"testing"
)

func TestNewResourceSpec_DnsRecord(t *testing.T) {
	spec, err := NewResourceSpec(KindDnsRecord)
	if err != nil {
		t.Fatalf("expected dns-record to be registered, got error: %v", err)
	}
	if spec.Kind() != KindDnsRecord {
		t.Errorf("expected kind 'dns-record', got '%s'", spec.Kind())
	}
}

func TestNewResourceSpec_NotFound(t *testing.T) {
	_, err := NewResourceSpec("nonexistent")
	if err == nil {
		t.Fatal("expected error for nonexistent resource type")
	}
}

func TestNewResourceSpec_AllKindsRegistered(t *testing.T) {
	kinds := []Kind{
		KindDnsRecord,
		KindServiceUnit,
		KindProxyRoute,
		KindCertificateBinding,
		KindEnvFile,
	}
	for _, kind := range kinds {
		spec, err := NewResourceSpec(kind)
		if err != nil {
			t.Fatalf("expected '%s' to be registered, got error: %v", kind, err)
		}
		if spec.Kind() != kind {
			t.Errorf("expected kind '%s', got '%s'", kind, spec.Kind())
		}
	}
	if len(RegisteredKinds()) != len(kinds) {
		t.Errorf("expected %d registered kinds, got %d", len(kinds), len(RegisteredKinds()))
	}
}

func TestNewResourceSpec_FreshInstances(t *testing.T) {
	first, _ := NewResourceSpec(KindDnsRecord)
	second, _ := NewResourceSpec(KindDnsRecord)
	if first == second {
		t.Error("expected registry to return fresh spec instances")
	}
}
