// Package providers holds the shared scaffolding for pluggable provider
// registries: stable provider IDs, ordered enable-flagged sets, and persisted
// ordering.
package providers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// StableID derives a deterministic provider ID from the owning plugin identity
// and the provider type name. The same provider always gets the same ID across
// restarts, so persisted ordering survives.
func StableID(plugin, typeName string) string {
	sum := sha256.Sum256([]byte(plugin + "/" + typeName))
	return hex.EncodeToString(sum[:8])
}

// Info is the runtime registration record of one provider.
type Info struct {
	ID       string
	Name     string
	Plugin   string
	Enabled  bool
	Priority int // lower runs first
}

// StateStore persists registry state as a JSON document per registry.
type StateStore interface {
	GetSetting(key string) ([]byte, bool, error)
	SetSetting(key string, value []byte) error
}

type entryState struct {
	Enabled  bool `json:"enabled"`
	Priority int  `json:"priority"`
}

// Registered pairs a provider instance with its registration record.
type Registered[P any] struct {
	Info     Info
	Provider P
}

// Set is an ordered, enable-flagged collection of providers of one kind.
// Mutations happen under a single coarse lock; readers get defensive copies
// so they never observe the set mid-mutation.
type Set[P any] struct {
	mu      sync.Mutex
	key     string
	store   StateStore
	entries []*Registered[P]
}

// NewSet creates a provider set persisting its state under the given settings
// key. A nil store keeps state in memory only.
func NewSet[P any](key string, store StateStore) *Set[P] {
	return &Set[P]{key: key, store: store}
}

// Register adds a provider, enabled, with priority equal to registration
// order. Call Load afterwards to apply persisted state.
func (s *Set[P]) Register(name, plugin string, p P) Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:       StableID(plugin, name),
		Name:     name,
		Plugin:   plugin,
		Enabled:  true,
		Priority: len(s.entries),
	}
	s.entries = append(s.entries, &Registered[P]{Info: info, Provider: p})
	return info
}

// Load applies persisted enablement and ordering to the registered providers.
// Stale entries for providers that are no longer registered are pruned and
// the pruned document is written back.
func (s *Set[P]) Load() error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.store.GetSetting(s.key)
	if err != nil {
		return fmt.Errorf("load provider state %s: %w", s.key, err)
	}
	if !ok {
		return s.saveLocked()
	}

	var state map[string]entryState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("decode provider state %s: %w", s.key, err)
	}

	pruned := false
	known := make(map[string]bool, len(s.entries))
	for _, e := range s.entries {
		known[e.Info.ID] = true
		if st, ok := state[e.Info.ID]; ok {
			e.Info.Enabled = st.Enabled
			e.Info.Priority = st.Priority
		}
	}
	for id := range state {
		if !known[id] {
			pruned = true
		}
	}
	s.sortLocked()

	if pruned {
		return s.saveLocked()
	}
	return nil
}

// List returns registration records for all providers, ordered by priority.
func (s *Set[P]) List() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Info
	}
	return out
}

// Enabled returns the enabled providers in priority order.
func (s *Set[P]) Enabled() []Registered[P] {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Registered[P]
	for _, e := range s.entries {
		if e.Info.Enabled {
			out = append(out, *e)
		}
	}
	return out
}

// Get returns the provider with the given ID.
func (s *Set[P]) Get(id string) (Registered[P], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Info.ID == id {
			return *e, true
		}
	}
	var zero Registered[P]
	return zero, false
}

// Update mutates enablement and priority of one provider and persists the new
// state. Returns false if the provider is unknown.
func (s *Set[P]) Update(id string, enabled bool, priority int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target *Registered[P]
	for _, e := range s.entries {
		if e.Info.ID == id {
			target = e
			break
		}
	}
	if target == nil {
		return false, nil
	}
	target.Info.Enabled = enabled
	target.Info.Priority = priority
	s.sortLocked()
	if err := s.saveLocked(); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Set[P]) sortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Info.Priority < s.entries[j].Info.Priority
	})
	// Re-index so priorities stay dense after arbitrary updates.
	for i, e := range s.entries {
		e.Info.Priority = i
	}
}

func (s *Set[P]) saveLocked() error {
	if s.store == nil {
		return nil
	}
	state := make(map[string]entryState, len(s.entries))
	for _, e := range s.entries {
		state[e.Info.ID] = entryState{Enabled: e.Info.Enabled, Priority: e.Info.Priority}
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode provider state %s: %w", s.key, err)
	}
	if err := s.store.SetSetting(s.key, raw); err != nil {
		return fmt.Errorf("save provider state %s: %w", s.key, err)
	}
	return nil
}
