// Package watchguard tracks paths the pipeline is currently manipulating so a
// file-system watcher can ignore events the pipeline caused itself.
//
// Callers add a path before a programmatic create/move/delete and remove it in
// a deferred call, even on failure:
//
//	guard.Add(path)
//	defer guard.Remove(path)
package watchguard

import (
	"path/filepath"
	"sync"
)

// Registry is a reference-counted set of excluded absolute paths.
// The zero value is not usable; call New.
type Registry struct {
	mu    sync.Mutex
	paths map[string]int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{paths: make(map[string]int)}
}

// Add marks a path as pipeline-owned. Nested Add calls on the same path are
// counted and must be balanced by the same number of Remove calls.
func (r *Registry) Add(path string) {
	key := filepath.Clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[key]++
}

// Remove releases one exclusion on the path.
func (r *Registry) Remove(path string) {
	key := filepath.Clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.paths[key]; n > 1 {
		r.paths[key] = n - 1
	} else {
		delete(r.paths, key)
	}
}

// Contains reports whether the path, or any of its ancestors, is currently
// excluded. Watchers call this before reacting to a file-system event.
func (r *Registry) Contains(path string) bool {
	key := filepath.Clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if _, ok := r.paths[key]; ok {
			return true
		}
		parent := filepath.Dir(key)
		if parent == key {
			return false
		}
		key = parent
	}
}
