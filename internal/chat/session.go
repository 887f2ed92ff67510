package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/wirechat/wirechat/internal/auth"
	"github.com/wirechat/wirechat/internal/registry"
	"github.com/wirechat/wirechat/internal/wire"
)

// State is the lifecycle phase of one connection.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// PresenceTracker is the slice of the presence store sessions need.
type PresenceTracker interface {
	MarkOnline(ctx context.Context, identity string) error
	Renew(ctx context.Context, identity string) error
	MarkOffline(ctx context.Context, identity string) error
	ListOnline(ctx context.Context) ([]string, error)
}

// Gateway accepts websocket connections and runs a Session for each one.
type Gateway struct {
	auth        *auth.Authenticator
	registry    *registry.Registry
	presence    PresenceTracker
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewGateway wires the session dependencies together.
func NewGateway(a *auth.Authenticator, reg *registry.Registry, presence PresenceTracker, b *Broadcaster, logger *slog.Logger) *Gateway {
	return &Gateway{
		auth:        a,
		registry:    reg,
		presence:    presence,
		broadcaster: b,
		logger:      logger.With("component", "gateway"),
	}
}

// connHandle adapts a websocket connection to the registry's write
// surface. coder/websocket serializes concurrent writers itself, so the
// fan-out loop and the session's own replies can share it.
type connHandle struct {
	conn *websocket.Conn
}

func (h *connHandle) WriteBinary(ctx context.Context, frame []byte) error {
	return h.conn.Write(ctx, websocket.MessageBinary, frame)
}

// Session is the per-connection protocol state machine.
type Session struct {
	gw       *Gateway
	conn     *websocket.Conn
	handle   *connHandle
	identity string
	state    State

	cleanup sync.Once
}

// Handler returns an echo.HandlerFunc that upgrades the request and runs
// the session until the connection dies. The identity token travels as
// the `token` query parameter on the handshake.
func (g *Gateway) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			// In a production environment, check the origin to prevent CSRF.
			InsecureSkipVerify: true,
		})
		if err != nil {
			g.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		sess := &Session{
			gw:     g,
			conn:   conn,
			handle: &connHandle{conn: conn},
			state:  StateConnecting,
		}
		sess.run(c.Request().Context(), c.QueryParam("token"))
		return nil
	}
}

// run drives the state machine: authenticate, announce, then pump frames
// until disconnect. Cleanup is unconditional and runs exactly once no
// matter which exit path is taken.
func (s *Session) run(ctx context.Context, token string) {
	s.state = StateAuthenticating

	identity, err := s.gw.auth.Verify(token)
	if err != nil {
		// Terminal: the session never reaches AUTHENTICATED and touches no
		// shared state. The refusal frame is always uncompressed.
		s.gw.logger.Info("Rejected connection", "error", err)
		if frame, encErr := wire.Encode(NewAuthError("authentication failed: "+err.Error()), false); encErr == nil {
			_ = s.handle.WriteBinary(ctx, frame)
		}
		s.conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		s.state = StateClosed
		return
	}

	s.identity = identity
	s.state = StateAuthenticated
	defer s.close()

	s.gw.registry.Register(identity, s.handle)
	if err := s.gw.presence.MarkOnline(ctx, identity); err != nil {
		s.gw.logger.Error("Failed to mark identity online", "identity", identity, "error", err)
	}

	s.send(ctx, NewAuthOK(identity))
	if err := s.gw.broadcaster.Publish(ctx, NewUserJoin(identity)); err != nil {
		s.gw.logger.Error("Failed to publish join event", "identity", identity, "error", err)
	}
	s.publishPresenceSnapshot(ctx)

	s.gw.logger.Info("Session authenticated", "identity", identity, "state", s.state.String())
	s.readLoop(ctx)
}

// readLoop processes inbound frames strictly in arrival order until the
// connection closes or fails.
func (s *Session) readLoop(ctx context.Context) {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.gw.logger.Info("WebSocket closed by client", "identity", s.identity)
			} else if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				s.gw.logger.Error("WebSocket read error", "identity", s.identity, "error", err)
			}
			return
		}

		// Non-binary input is silently ignored; the wire protocol is
		// binary frames only.
		if typ != websocket.MessageBinary {
			continue
		}

		s.dispatch(ctx, data)
	}
}

// dispatch decodes one frame and acts on its type. Decode and dispatch
// failures stay local to the frame: the peer gets an error reply and the
// session continues.
func (s *Session) dispatch(ctx context.Context, data []byte) {
	var event Event
	if err := wire.Decode(data, &event); err != nil {
		s.send(ctx, NewError(err.Error()))
		return
	}

	switch event.Type {
	case TypePing:
		if err := s.gw.presence.Renew(ctx, s.identity); err != nil {
			s.gw.logger.Error("Failed to renew presence", "identity", s.identity, "error", err)
		}
		s.send(ctx, NewPong())

	case TypeChat:
		message := strings.TrimSpace(event.Message)
		if message == "" {
			return
		}
		if err := s.gw.broadcaster.Publish(ctx, NewChat(s.identity, message)); err != nil {
			s.gw.logger.Error("Failed to publish chat event", "identity", s.identity, "error", err)
			s.send(ctx, NewError("message could not be delivered"))
		}

	default:
		s.send(ctx, NewError("unknown message type"))
	}
}

// send writes one event frame to this session's peer. Send failures are
// logged only; the read loop notices the dead connection on its own.
func (s *Session) send(ctx context.Context, event Event) {
	frame, err := wire.Encode(event, true)
	if err != nil {
		s.gw.logger.Error("Failed to encode frame", "type", event.Type, "error", err)
		return
	}
	if err := s.handle.WriteBinary(ctx, frame); err != nil {
		s.gw.logger.Warn("Failed to write frame", "identity", s.identity, "type", event.Type, "error", err)
	}
}

// close runs the terminal cleanup exactly once: drop the local
// registration, delete the presence key, and announce the departure. A
// fresh background context is used because the request context is already
// dead on most exit paths.
func (s *Session) close() {
	s.cleanup.Do(func() {
		ctx := context.Background()
		s.state = StateClosed

		s.gw.registry.Unregister(s.identity, s.handle)
		if err := s.gw.presence.MarkOffline(ctx, s.identity); err != nil {
			s.gw.logger.Error("Failed to mark identity offline", "identity", s.identity, "error", err)
		}
		if err := s.gw.broadcaster.Publish(ctx, NewUserLeave(s.identity)); err != nil {
			s.gw.logger.Error("Failed to publish leave event", "identity", s.identity, "error", err)
		}
		s.publishPresenceSnapshot(ctx)

		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.gw.logger.Info("Session closed", "identity", s.identity)
	})
}

// publishPresenceSnapshot publishes the current cluster-wide online set.
func (s *Session) publishPresenceSnapshot(ctx context.Context) {
	users, err := s.gw.presence.ListOnline(ctx)
	if err != nil {
		s.gw.logger.Error("Failed to list online identities", "error", err)
		return
	}
	if err := s.gw.broadcaster.Publish(ctx, NewPresence(users)); err != nil {
		s.gw.logger.Error("Failed to publish presence snapshot", "error", err)
	}
}
