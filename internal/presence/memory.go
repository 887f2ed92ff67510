package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps presence in a process-local map with the same TTL
// semantics as the Redis store. It is the single-node driver: useful for
// development without a shared store, and for tests. Entries expire
// lazily on read.
type MemoryStore struct {
	mu         sync.Mutex
	deadlines  map[string]time.Time
	instanceID string
	ttl        time.Duration
}

// NewMemoryStore creates an empty in-process presence store.
func NewMemoryStore(instanceID string, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		deadlines:  make(map[string]time.Time),
		instanceID: instanceID,
		ttl:        ttl,
	}
}

// MarkOnline records the identity with a fresh TTL, overwriting any prior
// entry.
func (s *MemoryStore) MarkOnline(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[identity] = time.Now().Add(s.ttl)
	return nil
}

// Renew resets the identity's TTL. Renewing an expired or unknown
// identity recreates it, matching EXPIRE-after-SET behavior closely
// enough for a single process.
func (s *MemoryStore) Renew(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[identity] = time.Now().Add(s.ttl)
	return nil
}

// MarkOffline removes the identity unconditionally.
func (s *MemoryStore) MarkOffline(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deadlines, identity)
	return nil
}

// ListOnline returns the sorted identities whose TTL has not elapsed,
// dropping expired entries as it goes.
func (s *MemoryStore) ListOnline(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	identities := make([]string, 0, len(s.deadlines))
	for identity, deadline := range s.deadlines {
		if deadline.Before(now) {
			delete(s.deadlines, identity)
			continue
		}
		identities = append(identities, identity)
	}
	sort.Strings(identities)
	return identities, nil
}
