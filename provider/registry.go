package provider

import (
	"fmt"
	"net/http"
	"slices"
)

// Settings carries the per-deployment values a Factory needs.
type Settings struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Factory builds an Adapter from settings.
type Factory func(Settings) (Adapter, error)

// Registry maps provider identifiers to factories. It is populated once at
// startup and passed explicitly to whoever needs to construct adapters.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering the same name twice replaces the
// earlier factory.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// New constructs the adapter registered under name.
func (r *Registry) New(name string, settings Settings) (Adapter, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %q (available: %v)", name, r.Names())
	}
	adapter, err := factory(settings)
	if err != nil {
		return nil, fmt.Errorf("creating provider %q: %w", name, err)
	}
	return adapter, nil
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a provider is registered.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.factories[name]
	return ok
}
