package provider

import (
	"sort"
	"sync"
)

// Registry maps provider kinds ("apple", "google", "windows", "noop", ...)
// to adapter instances. It is safe for concurrent readers after startup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry, optionally pre-populated via options.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*Registry)

// WithAdapter registers an adapter for a provider kind.
func WithAdapter(kind string, adapter Adapter) RegistryOption {
	return func(r *Registry) {
		r.adapters[kind] = adapter
	}
}

// Register adds or replaces the adapter for a provider kind.
func (r *Registry) Register(kind string, adapter Adapter) error {
	if adapter == nil {
		return ErrAdapterNil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[kind] = adapter
	return nil
}

// Get returns the adapter for a provider kind.
func (r *Registry) Get(kind string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return adapter, nil
}

// Kinds returns the registered provider kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.adapters))
	for kind := range r.adapters {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
