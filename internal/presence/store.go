// Package presence tracks which identities are online anywhere in the
// cluster, using TTL keys in a shared Redis. A key's absence means
// offline; a crashed connection's entry self-heals within one TTL window
// without any explicit cleanup.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "online:"

// redisClient defines the interface we need from go-redis.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Store is the cluster-wide presence record. Each entry maps an identity
// to the instance currently holding its connection.
type Store struct {
	client     redisClient
	instanceID string
	ttl        time.Duration
	logger     *slog.Logger
}

// NewStore constructs a presence Store bound to this instance's id.
func NewStore(client redisClient, instanceID string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &Store{
		client:     client,
		instanceID: instanceID,
		ttl:        ttl,
		logger:     logger.With("component", "presence_store"),
	}, nil
}

// MarkOnline records the identity as online on this instance, overwriting
// any prior owner. A reconnect anywhere in the cluster wins over stale
// state.
func (s *Store) MarkOnline(ctx context.Context, identity string) error {
	key := onlineKey(identity)
	if err := s.client.Set(ctx, key, s.instanceID, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to set presence key", "key", key, "error", err)
		return fmt.Errorf("mark online %q: %w", identity, err)
	}
	s.logger.Debug("Marked identity online", "identity", identity, "ttl", s.ttl)
	return nil
}

// Renew resets the TTL on the identity's presence key without changing
// its value. Called on each received heartbeat.
func (s *Store) Renew(ctx context.Context, identity string) error {
	key := onlineKey(identity)
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to renew presence key", "key", key, "error", err)
		return fmt.Errorf("renew %q: %w", identity, err)
	}
	return nil
}

// MarkOffline deletes the identity's presence key unconditionally. Used on
// clean disconnect; a crash skips this and the TTL takes care of it.
func (s *Store) MarkOffline(ctx context.Context, identity string) error {
	key := onlineKey(identity)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("Failed to delete presence key", "key", key, "error", err)
		return fmt.Errorf("mark offline %q: %w", identity, err)
	}
	s.logger.Debug("Marked identity offline", "identity", identity)
	return nil
}

// ListOnline returns the sorted set of identities with a live presence
// key. This is an O(n) scan over presence keys and is the scalability
// ceiling of the design; acceptable at small-to-moderate cluster sizes.
func (s *Store) ListOnline(ctx context.Context) ([]string, error) {
	var (
		identities []string
		cursor     uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			s.logger.Error("Failed to scan presence keys", "error", err)
			return nil, fmt.Errorf("list online: %w", err)
		}
		for _, key := range keys {
			identities = append(identities, strings.TrimPrefix(key, keyPrefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(identities)
	return identities, nil
}

func onlineKey(identity string) string { return keyPrefix + identity }
