package hashing

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/providers"
)

const (
	settingProviders   = "hashing.providers"
	settingAssignments = "hashing.assignments"
)

// Registry holds the registered hash providers and the hash-type to provider
// assignment map. It enforces the core invariant: the canonical ED2K type is
// always assigned to some enabled provider, falling back to the core provider.
type Registry struct {
	set   *providers.Set[Provider]
	store providers.StateStore

	mu          sync.Mutex
	coreID      string
	assignments map[string]string // hash type -> provider ID
}

// NewRegistry creates a registry persisting state through store (may be nil).
func NewRegistry(store providers.StateStore) *Registry {
	return &Registry{
		set:         providers.NewSet[Provider](settingProviders, store),
		store:       store,
		assignments: make(map[string]string),
	}
}

// Register adds a provider. The first registered provider able to produce
// ED2K becomes the default core fallback.
func (r *Registry) Register(plugin string, p Provider) providers.Info {
	info := r.set.Register(p.Name(), plugin, p)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.coreID == "" {
		for _, t := range p.HashTypes() {
			if t == library.HashTypeED2K {
				r.coreID = info.ID
				break
			}
		}
	}
	for _, t := range p.HashTypes() {
		if _, taken := r.assignments[t]; !taken {
			r.assignments[t] = info.ID
		}
	}
	return info
}

// Load applies persisted provider state and assignments, pruning entries for
// unknown providers and re-enforcing the core invariant.
func (r *Registry) Load() error {
	if err := r.set.Load(); err != nil {
		return err
	}
	if r.store == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	raw, ok, err := r.store.GetSetting(settingAssignments)
	if err != nil {
		return fmt.Errorf("load hash assignments: %w", err)
	}
	if ok {
		var persisted map[string]string
		if err := json.Unmarshal(raw, &persisted); err != nil {
			return fmt.Errorf("decode hash assignments: %w", err)
		}
		for t, id := range persisted {
			if _, known := r.set.Get(id); known {
				r.assignments[t] = id
			}
		}
	}
	r.enforceCoreLocked()
	return r.saveAssignmentsLocked()
}

// List returns registration records in priority order.
func (r *Registry) List() []providers.Info { return r.set.List() }

// Enabled returns the enabled providers in priority order.
func (r *Registry) Enabled() []providers.Registered[Provider] { return r.set.Enabled() }

// Update mutates one provider's enablement/priority, persists the new state,
// and re-enforces the core invariant. Returns false for an unknown ID.
func (r *Registry) Update(id string, enabled bool, priority int) (bool, error) {
	ok, err := r.set.Update(id, enabled, priority)
	if err != nil || !ok {
		return ok, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.enforceCoreLocked()
	return true, r.saveAssignmentsLocked()
}

// Assign binds a hash type to a provider and persists the assignment map.
func (r *Registry) Assign(hashType, providerID string) error {
	reg, ok := r.set.Get(providerID)
	if !ok {
		return fmt.Errorf("assign %s: unknown provider %s", hashType, providerID)
	}
	supported := false
	for _, t := range reg.Provider.HashTypes() {
		if t == hashType {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("assign %s: provider %s does not produce it", hashType, reg.Info.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[hashType] = providerID
	r.enforceCoreLocked()
	return r.saveAssignmentsLocked()
}

// TypesFor returns the subset of enabledTypes assigned to the given provider.
func (r *Registry) TypesFor(providerID string, enabledTypes []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range enabledTypes {
		if r.assignments[t] == providerID {
			out = append(out, t)
		}
	}
	return out
}

// enforceCoreLocked guarantees ED2K is assigned to an enabled provider,
// reassigning it to the core fallback when its current owner is disabled or
// gone.
func (r *Registry) enforceCoreLocked() {
	id := r.assignments[library.HashTypeED2K]
	if id != "" {
		if reg, ok := r.set.Get(id); ok && reg.Info.Enabled {
			return
		}
	}
	if r.coreID != "" {
		r.assignments[library.HashTypeED2K] = r.coreID
	}
}

func (r *Registry) saveAssignmentsLocked() error {
	if r.store == nil {
		return nil
	}
	raw, err := json.Marshal(r.assignments)
	if err != nil {
		return fmt.Errorf("encode hash assignments: %w", err)
	}
	if err := r.store.SetSetting(settingAssignments, raw); err != nil {
		return fmt.Errorf("save hash assignments: %w", err)
	}
	return nil
}
