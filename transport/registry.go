package transport

import "sync"

// Registry maintains the capability sets of the known channel adapters.
// Adapter packages register themselves in init.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capabilities
}

// DefaultRegistry is the global channel registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{capabilities: make(map[string]Capabilities)}
}

// Register records the capabilities of a channel under its name.
func (r *Registry) Register(caps Capabilities) {
	if caps.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[caps.Name] = caps
}

// Get returns the capabilities for a channel. Unknown channels yield a zero
// Capabilities struct carrying only the name.
func (r *Registry) Get(name string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caps, ok := r.capabilities[name]; ok {
		return caps
	}
	return Capabilities{Name: name}
}

// Has returns true if a channel is registered with the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.capabilities[name]
	return ok
}

// Names returns the registered channel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	return names
}

// All returns every registered capability set keyed by channel name.
func (r *Registry) All() map[string]Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Capabilities, len(r.capabilities))
	for name, caps := range r.capabilities {
		out[name] = caps
	}
	return out
}

// Register records capabilities in the default registry.
func Register(caps Capabilities) {
	DefaultRegistry.Register(caps)
}

// Get returns capabilities from the default registry.
func Get(name string) Capabilities {
	return DefaultRegistry.Get(name)
}
