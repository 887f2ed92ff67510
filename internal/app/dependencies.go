// Package app builds the process-wide dependency set at startup and tears
// it down at shutdown. Nothing in the system reaches for shared clients
// through globals; everything is handed its dependencies from here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/wirechat/wirechat/internal/auth"
	"github.com/wirechat/wirechat/internal/chat"
	"github.com/wirechat/wirechat/internal/config"
	"github.com/wirechat/wirechat/internal/handlers"
	"github.com/wirechat/wirechat/internal/presence"
	"github.com/wirechat/wirechat/internal/pubsub"
	"github.com/wirechat/wirechat/internal/registry"
)

// Dependencies holds the core services required by the application.
type Dependencies struct {
	Cfg           *config.Config
	Redis         *redis.Client // nil under the channel bus driver
	Bus           pubsub.Bus
	Registry      *registry.Registry
	Presence      chat.PresenceTracker
	Broadcaster   *chat.Broadcaster
	Gateway       *chat.Gateway
	Authenticator *auth.Authenticator
	AuthHandler   *handlers.AuthHandler
}

// New wires up all components for the configured bus driver.
//
// The "redis" driver is the clustered deployment: presence keys and the
// event channel live in the shared Redis so every instance sees them.
// The "channel" driver keeps both in-process for single-node runs.
func New(cfg *config.Config) (*Dependencies, error) {
	logger := slog.Default()

	deps := &Dependencies{
		Cfg:           cfg,
		Registry:      registry.New(),
		Authenticator: auth.NewAuthenticator([]byte(cfg.AuthSecret), cfg.TokenTTL),
	}

	switch cfg.BusDriver {
	case "redis":
		deps.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		bus, err := pubsub.NewRedisBus(deps.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("create redis bus: %w", err)
		}
		deps.Bus = bus

		store, err := presence.NewStore(deps.Redis, cfg.InstanceID, cfg.PresenceTTL, logger)
		if err != nil {
			return nil, fmt.Errorf("create presence store: %w", err)
		}
		deps.Presence = store

	case "channel":
		deps.Bus = pubsub.NewChannelBus()
		deps.Presence = presence.NewMemoryStore(cfg.InstanceID, cfg.PresenceTTL)

	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.BusDriver)
	}

	deps.Broadcaster = chat.NewBroadcaster(deps.Bus, cfg.BusChannel, deps.Registry, logger)
	deps.Gateway = chat.NewGateway(deps.Authenticator, deps.Registry, deps.Presence, deps.Broadcaster, logger)
	deps.AuthHandler = handlers.NewAuthHandler(auth.NewDemoStore(), deps.Authenticator, logger)

	return deps, nil
}

// Start begins the process-wide bus subscription loop.
func (d *Dependencies) Start(ctx context.Context) error {
	if err := d.Broadcaster.Run(ctx); err != nil {
		return fmt.Errorf("start broadcast subscription: %w", err)
	}
	slog.Info("Broadcast subscription started",
		"driver", d.Cfg.BusDriver,
		"channel", d.Cfg.BusChannel,
		"instance", d.Cfg.InstanceID)
	return nil
}

// Close tears down the shared clients in reverse construction order.
func (d *Dependencies) Close() error {
	var firstErr error
	if err := d.Bus.Close(); err != nil {
		firstErr = err
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
