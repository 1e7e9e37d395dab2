package model

import (
	"fmt"
	"sync"
)

// SpecFactory creates an empty ResourceSpec ready for document decoding.
type SpecFactory func() ResourceSpec

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]SpecFactory)
)

// RegisterResourceType registers a factory for a resource kind.
// e.g. RegisterResourceType(KindDnsRecord, func() ResourceSpec { return &DnsRecordSpec{} })
func RegisterResourceType(kind Kind, factory SpecFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic("RegisterResourceType called twice for " + kind)
	}
	registry[kind] = factory
}

// NewResourceSpec creates a fresh spec instance for the kind.
func NewResourceSpec(kind Kind) (ResourceSpec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("resource type '%s' not found in registry", kind)
	}
	return factory(), nil
}

// RegisteredKinds returns the kinds known to the registry.
func RegisteredKinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}
