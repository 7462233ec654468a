package relocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmunix/animarr/internal/events"
	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/providers"
)

const settingProviders = "relocation.providers"

// Registry is the ordered set of relocation providers plus the persisted
// pipes binding providers to configurations.
type Registry struct {
	set   *providers.Set[Provider]
	store *library.Store
	bus   *events.Bus
}

// NewRegistry creates a registry persisting provider state through store.
func NewRegistry(store *library.Store, bus *events.Bus) *Registry {
	var state providers.StateStore
	if store != nil {
		state = store
	}
	return &Registry{set: providers.NewSet[Provider](settingProviders, state), store: store, bus: bus}
}

// Register adds a provider at the next priority slot.
func (r *Registry) Register(plugin string, p Provider) providers.Info {
	return r.set.Register(p.Name(), plugin, p)
}

// Load applies persisted enablement and ordering, then prunes pipes whose
// provider is no longer registered.
func (r *Registry) Load() error {
	if err := r.set.Load(); err != nil {
		return err
	}
	if r.store == nil {
		return nil
	}
	pipes, err := r.store.ListPipes()
	if err != nil {
		return err
	}
	for _, pipe := range pipes {
		if _, ok := r.set.Get(pipe.ProviderID); !ok {
			if err := r.store.DeletePipe(pipe.ID); err != nil {
				return fmt.Errorf("prune stale pipe %q: %w", pipe.Name, err)
			}
		}
	}
	return nil
}

// List returns registration records in priority order.
func (r *Registry) List() []providers.Info { return r.set.List() }

// Get returns the provider registered under the given ID.
func (r *Registry) Get(id string) (providers.Registered[Provider], bool) { return r.set.Get(id) }

// Update mutates one provider's enablement/priority and persists the change.
func (r *Registry) Update(ctx context.Context, id string, enabled bool, priority int) (bool, error) {
	ok, err := r.set.Update(id, enabled, priority)
	if ok && err == nil && r.bus != nil {
		_ = r.bus.Publish(ctx, &events.ProviderSetChanged{
			BaseEvent: events.NewBaseEvent(events.EventProviderSetChanged, events.EntityProvider, 0),
			Registry:  "relocation",
		})
	}
	return ok, err
}

// DefaultPipe returns the default pipe and its provider.
// Returns ErrNoPipe when no default is configured.
func (r *Registry) DefaultPipe() (*library.RelocationPipe, Provider, error) {
	pipe, err := r.store.GetDefaultPipe()
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return nil, nil, ErrNoPipe
		}
		return nil, nil, err
	}
	reg, ok := r.set.Get(pipe.ProviderID)
	if !ok {
		return nil, nil, fmt.Errorf("pipe %q: unknown provider %s", pipe.Name, pipe.ProviderID)
	}
	return pipe, reg.Provider, nil
}

// Pipe returns the named pipe and its provider.
func (r *Registry) Pipe(name string) (*library.RelocationPipe, Provider, error) {
	pipe, err := r.store.GetPipeByName(name)
	if err != nil {
		return nil, nil, err
	}
	reg, ok := r.set.Get(pipe.ProviderID)
	if !ok {
		return nil, nil, fmt.Errorf("pipe %q: unknown provider %s", pipe.Name, pipe.ProviderID)
	}
	return pipe, reg.Provider, nil
}
