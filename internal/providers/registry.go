package providers

import "fmt"

// Registry is a name-addressable lookup over configured providers, used by
// tools that need a specific provider/model (image generation, vision) by
// name rather than tier-based failover chat.
type Registry struct {
	byName map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Provider)}
}

// Register adds p under its own Name(), overwriting any prior entry.
func (r *Registry) Register(p Provider) {
	r.byName[p.Name()] = p
}

// Get looks up a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("providers: no provider registered as %q", name)
	}
	return p, nil
}

// Names returns every registered provider name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}
