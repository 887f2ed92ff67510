// Package registry tracks the live connections owned by this process.
package registry

import (
	"context"
	"sync"
)

// Handle is the write surface of one live connection. The registry never
// calls it while holding its lock.
type Handle interface {
	// WriteBinary sends one binary frame to the peer.
	WriteBinary(ctx context.Context, frame []byte) error
}

// Registry is a process-local map from identity to connection handle.
// A single mutex guards the map; it is held only for map access, never
// across I/O.
type Registry struct {
	mu    sync.Mutex
	conns map[string]Handle
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{conns: make(map[string]Handle)}
}

// Register records the handle for an identity, replacing any existing
// entry. Last writer wins: a reconnect displaces the old connection's
// entry and the old connection's cleanup becomes a no-op.
func (r *Registry) Register(identity string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[identity] = h
}

// Unregister removes the entry for identity only if it still points at h.
// This keeps a late cleanup from a previous connection from erasing a
// newer one after a reconnect. It reports whether an entry was removed.
func (r *Registry) Unregister(identity string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[identity]; ok && current == h {
		delete(r.conns, identity)
		return true
	}
	return false
}

// Snapshot returns a copy of the current identity to handle pairs for
// fan-out. Mutations after the call do not affect the returned map.
func (r *Registry) Snapshot() map[string]Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Handle, len(r.conns))
	for identity, h := range r.conns {
		out[identity] = h
	}
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
