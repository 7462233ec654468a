package resolution

import (
	"context"

	"github.com/vmunix/animarr/internal/events"
	"github.com/vmunix/animarr/internal/providers"
)

const settingProviders = "resolution.providers"

// Registry is the ordered set of release providers. Mutations publish a
// provider-set-changed event so a running search can be re-evaluated.
type Registry struct {
	set *providers.Set[Provider]
	bus *events.Bus
}

// NewRegistry creates a registry persisting state through store (may be nil).
func NewRegistry(store providers.StateStore, bus *events.Bus) *Registry {
	return &Registry{set: providers.NewSet[Provider](settingProviders, store), bus: bus}
}

// Register adds a provider at the next priority slot.
func (r *Registry) Register(plugin string, p Provider) providers.Info {
	return r.set.Register(p.Name(), plugin, p)
}

// Load applies persisted enablement and ordering.
func (r *Registry) Load() error { return r.set.Load() }

// List returns registration records in priority order.
func (r *Registry) List() []providers.Info { return r.set.List() }

// Enabled returns the enabled providers in priority order.
func (r *Registry) Enabled() []providers.Registered[Provider] { return r.set.Enabled() }

// Get returns the provider registered under the given ID.
func (r *Registry) Get(id string) (providers.Registered[Provider], bool) { return r.set.Get(id) }

// Update mutates one provider's enablement/priority and persists the change.
// Returns false for an unknown ID.
func (r *Registry) Update(ctx context.Context, id string, enabled bool, priority int) (bool, error) {
	ok, err := r.set.Update(id, enabled, priority)
	if ok && err == nil && r.bus != nil {
		_ = r.bus.Publish(ctx, &events.ProviderSetChanged{
			BaseEvent: events.NewBaseEvent(events.EventProviderSetChanged, events.EntityProvider, 0),
			Registry:  "release",
		})
	}
	return ok, err
}
