// Package pubsub defines the cross-instance event bus contract and its
// drivers. Every instance publishes chat and presence events to one shared
// channel and holds exactly one long-lived subscription to it.
package pubsub

import (
	"context"
)

// Handler defines the function signature for processing a received event
// payload. A non-nil error marks the single event as failed; it never
// terminates the subscription.
type Handler func(ctx context.Context, payload []byte) error

// Publisher defines the contract for sending events to the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Subscriber defines the contract for receiving events from the bus.
// Events are delivered to the handler in publish order per process.
type Subscriber interface {
	// Subscribe starts listening on the given topic, processing events with
	// the handler in a background goroutine. It returns once the
	// subscription is active.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus combines both halves; every driver implements it.
type Bus interface {
	Publisher
	Subscriber
}
