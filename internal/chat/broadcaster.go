package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wirechat/wirechat/internal/pubsub"
	"github.com/wirechat/wirechat/internal/registry"
	"github.com/wirechat/wirechat/internal/wire"
)

// writeTimeout bounds each fan-out write so one stuck peer cannot stall
// delivery to the rest.
const writeTimeout = 10 * time.Second

// Broadcaster is this instance's face of the broadcast bus. It publishes
// events with a server timestamp and runs the single subscription loop
// that turns bus events into wire frames for every local connection.
type Broadcaster struct {
	bus      pubsub.Bus
	topic    string
	registry *registry.Registry
	logger   *slog.Logger
}

// NewBroadcaster wires the bus to this process's connection registry.
func NewBroadcaster(bus pubsub.Bus, topic string, reg *registry.Registry, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		bus:      bus,
		topic:    topic,
		registry: reg,
		logger:   logger.With("component", "broadcaster"),
	}
}

// Publish stamps the event with the server time if it has none and
// publishes it to the shared channel.
func (b *Broadcaster) Publish(ctx context.Context, event Event) error {
	if event.TS == 0 {
		event.TS = now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.bus.Publish(ctx, b.topic, payload); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Run starts the process-wide subscription loop. Each received event is
// encoded once and fanned out to every registered connection; a bad event
// is skipped without terminating the subscription.
func (b *Broadcaster) Run(ctx context.Context) error {
	return b.bus.Subscribe(ctx, b.topic, b.fanOutLocal)
}

// fanOutLocal writes one bus event to all local connections, pruning any
// connection whose write fails.
func (b *Broadcaster) fanOutLocal(ctx context.Context, payload []byte) error {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		b.logger.Warn("Skipping undecodable bus event", "error", err)
		return nil
	}

	frame, err := wire.Encode(event, true)
	if err != nil {
		b.logger.Warn("Skipping unencodable bus event", "type", event.Type, "error", err)
		return nil
	}

	for identity, handle := range b.registry.Snapshot() {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := handle.WriteBinary(writeCtx, frame)
		cancel()
		if err != nil {
			// A failed write means a dead connection; drop it so the next
			// fan-out does not pay for it again.
			b.logger.Warn("Pruning dead connection", "identity", identity, "error", err)
			b.registry.Unregister(identity, handle)
		}
	}
	return nil
}
