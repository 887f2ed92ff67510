package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus on Redis Pub/Sub, the cross-instance driver.
// Redis delivers each published event to every subscribed instance in
// publish order per channel; there is no replay for instances that join
// late, which fits a presence-and-chat bus where stale events are useless.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedisBus wraps an existing client. The caller owns the client's
// lifecycle; Close only tears down subscriptions.
func NewRedisBus(client *redis.Client, logger *slog.Logger) (*RedisBus, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &RedisBus{
		client: client,
		logger: logger.With("component", "redis_bus"),
	}, nil
}

// Publish implements the Publisher interface.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %q: %w", topic, err)
	}
	return nil
}

// Subscribe implements the Subscriber interface. The receive loop survives
// handler errors on individual events; it ends when the subscription or
// the context is closed.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	sub := b.client.Subscribe(ctx, topic)

	// Force the subscription to be established before returning, so a
	// publish immediately after Subscribe is not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to %q: %w", topic, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.logger.Debug("Subscription message loop ended", "topic", topic)
					return
				}
				if err := handler(ctx, []byte(msg.Payload)); err != nil {
					b.logger.Error("Failed to handle bus event", "topic", topic, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close ends all subscriptions started through this bus.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for _, sub := range b.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.subs = nil
	return firstErr
}
