// Package chat ties authentication, connection bookkeeping, presence and
// the broadcast bus together into per-connection sessions.
package chat

import "time"

// Event types carried in the "type" field of every envelope.
const (
	TypeAuthOK    = "auth_ok"
	TypeAuthError = "auth_error"
	TypePresence  = "presence"
	TypeUserJoin  = "user_join"
	TypeUserLeave = "user_leave"
	TypeChat      = "chat"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeError     = "error"
)

// Event is the message envelope: the unit carried over the bus and over
// the wire to clients. TS is always server-assigned at publish time, in
// unix seconds; whatever a client supplies is discarded.
type Event struct {
	Type     string   `json:"type"`
	Username string   `json:"username,omitempty"`
	Message  string   `json:"message,omitempty"`
	Users    []string `json:"users,omitempty"`
	TS       int64    `json:"ts,omitempty"`
}

// NewChat creates a chat event for a message from username.
func NewChat(username, message string) Event {
	return Event{Type: TypeChat, Username: username, Message: message}
}

// NewUserJoin creates a join announcement for username.
func NewUserJoin(username string) Event {
	return Event{Type: TypeUserJoin, Username: username}
}

// NewUserLeave creates a leave announcement for username.
func NewUserLeave(username string) Event {
	return Event{Type: TypeUserLeave, Username: username}
}

// NewPresence creates a full presence snapshot event.
func NewPresence(users []string) Event {
	return Event{Type: TypePresence, Users: users}
}

// NewAuthOK creates the frame that confirms a successful handshake.
func NewAuthOK(username string) Event {
	return Event{Type: TypeAuthOK, Username: username, TS: now()}
}

// NewAuthError creates the frame sent before closing a rejected connection.
func NewAuthError(message string) Event {
	return Event{Type: TypeAuthError, Message: message}
}

// NewPong creates the heartbeat reply.
func NewPong() Event {
	return Event{Type: TypePong, TS: now()}
}

// NewError creates a per-frame error reply; the session continues.
func NewError(message string) Event {
	return Event{Type: TypeError, Message: message}
}

func now() int64 { return time.Now().Unix() }
