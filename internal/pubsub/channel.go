package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ChannelBus implements Bus on watermill's in-memory GoChannel. It only
// reaches subscribers in the same process, which is what single-node runs
// and tests want.
type ChannelBus struct {
	pub message.Publisher
	sub message.Subscriber
}

// NewChannelBus initializes an in-memory bus.
func NewChannelBus() *ChannelBus {
	logger := watermill.NewStdLogger(false, false)
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{},
		logger,
	)

	return &ChannelBus{
		pub: goChannel,
		sub: goChannel,
	}
}

// Publish implements the Publisher interface.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.pub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload))
}

// Subscribe implements the Subscriber interface.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	// Run the message processing in a separate goroutine so that Subscribe
	// is non-blocking.
	go func() {
		for wmMsg := range messages {
			if err := handler(ctx, wmMsg.Payload); err != nil {
				slog.Error("Failed to handle bus event", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
			}
			// Ack either way. A failed event is skipped, not retried;
			// a Nack would have the gochannel redeliver it forever.
			wmMsg.Ack()
		}
		slog.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts down the bus; it ends every active subscription loop.
func (b *ChannelBus) Close() error {
	return b.sub.Close()
}
