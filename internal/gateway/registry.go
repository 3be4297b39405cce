package gateway

import (
	"fmt"
	"sort"
)

// Registry resolves a gateway name to its provider adapter. Built once at
// startup; immutable afterwards, so concurrent lookups need no locking.
type Registry struct {
	providers map[string]PaymentProvider
}

// NewRegistry builds the registry from the full set of configured adapters.
func NewRegistry(providers ...PaymentProvider) *Registry {
	m := make(map[string]PaymentProvider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Provider returns the adapter for a gateway name.
func (r *Registry) Provider(name string) (PaymentProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("no provider registered for gateway %q", name)
	}
	return p, nil
}

// Names lists the registered gateway names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
