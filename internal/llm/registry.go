package llm

import (
	"fmt"
	"sync"
)

// Factory constructs a Provider from its static configuration.
type Factory func(cfg ProviderConfig) (Provider, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a provider factory to the global table. Provider packages
// call this from init(); duplicate registration is a programming error.
func Register(providerType string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, exists := factories[providerType]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", providerType))
	}
	factories[providerType] = f
}

// GetFactory looks up a registered provider factory.
func GetFactory(providerType string) (Factory, error) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	f, ok := factories[providerType]
	if !ok {
		return nil, fmt.Errorf("provider factory not found for type: %s", providerType)
	}
	return f, nil
}

// Registry resolves provider string ids to adapter instances. Built-in
// adapters are singletons constructed lazily from the factory table; custom
// adapters are registered explicitly per tenant and removable. Adapters are
// stateless transformation logic, so entries never expire.
type Registry struct {
	mu      sync.RWMutex
	builtin map[string]Provider
	custom  map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		builtin: make(map[string]Provider),
		custom:  make(map[string]Provider),
	}
}

// Lookup returns the adapter for a provider id, or nil when the id is
// unknown. Order: built-in cache, custom cache, construct-on-demand from the
// factory table.
func (r *Registry) Lookup(providerID string) Provider {
	r.mu.RLock()
	if p, ok := r.builtin[providerID]; ok {
		r.mu.RUnlock()
		return p
	}
	if p, ok := r.custom[providerID]; ok {
		r.mu.RUnlock()
		return p
	}
	r.mu.RUnlock()

	factory, err := GetFactory(providerID)
	if err != nil {
		return nil
	}

	p, err := factory(ProviderConfig{ID: providerID, Type: providerID})
	if err != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// another goroutine may have raced the construction; keep the first
	if existing, ok := r.builtin[providerID]; ok {
		return existing
	}
	r.builtin[providerID] = p
	return p
}

// RegisterCustom installs (or replaces) a tenant-defined adapter.
func (r *Registry) RegisterCustom(providerID string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[providerID] = p
}

// RemoveCustom uninstalls a tenant-defined adapter.
func (r *Registry) RemoveCustom(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.custom, providerID)
}

// CustomIDs returns the ids of all registered custom adapters.
func (r *Registry) CustomIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.custom))
	for id := range r.custom {
		ids = append(ids, id)
	}
	return ids
}
