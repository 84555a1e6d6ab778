// Package registry is the process-wide map from robot UUID to its live
// controller and session, enforcing one live session per identity.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"turtled/internal/controller"
	"turtled/internal/session"
	"turtled/internal/turtleerr"
)

// Entry is one robot's live controller and session handle.
type Entry struct {
	ID         uuid.UUID
	Controller *controller.Controller
	Mux        *session.Multiplexer
}

// Registry is a concurrency-safe UUID -> Entry map. Every mutation takes
// the same mutex; lookups by operator operations take the same short
// critical section, never blocking on robot I/O while holding it.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*Entry)}
}

// Register adds entry under its ID, refusing (with ErrAlreadyConnected)
// if a session for that identity is already live. Callers must close the
// rejected session's socket themselves.
func (r *Registry) Register(entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[entry.ID]; exists {
		return turtleerr.ErrAlreadyConnected
	}
	r.entries[entry.ID] = entry
	return nil
}

// Unregister removes id's entry, if present.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Get returns id's entry, or false if no session is live for it.
func (r *Registry) Get(id uuid.UUID) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// List returns a snapshot of all currently registered entries.
func (r *Registry) List() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}
