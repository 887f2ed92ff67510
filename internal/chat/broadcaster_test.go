package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirechat/wirechat/internal/pubsub"
	"github.com/wirechat/wirechat/internal/registry"
	"github.com/wirechat/wirechat/internal/wire"
)

// captureHandle records every frame written to it.
type captureHandle struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	wrote  chan struct{}
}

func newCaptureHandle() *captureHandle {
	return &captureHandle{wrote: make(chan struct{}, 16)}
}

func (h *captureHandle) WriteBinary(ctx context.Context, frame []byte) error {
	if h.fail {
		return errors.New("broken pipe")
	}
	h.mu.Lock()
	h.frames = append(h.frames, frame)
	h.mu.Unlock()
	h.wrote <- struct{}{}
	return nil
}

func (h *captureHandle) lastEvent(t *testing.T) Event {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.frames)
	var ev Event
	require.NoError(t, wire.Decode(h.frames[len(h.frames)-1], &ev))
	return ev
}

func waitWrite(t *testing.T, h *captureHandle) {
	t.Helper()
	select {
	case <-h.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame was written")
	}
}

func newTestBroadcaster(t *testing.T) (*Broadcaster, *registry.Registry, pubsub.Bus) {
	t.Helper()
	bus := pubsub.NewChannelBus()
	t.Cleanup(func() { _ = bus.Close() })
	reg := registry.New()
	b := NewBroadcaster(bus, "chat:events", reg, slog.Default())
	return b, reg, bus
}

func TestPublish_StampsServerTimestamp(t *testing.T) {
	b, _, bus := newTestBroadcaster(t)

	received := make(chan []byte, 1)
	require.NoError(t, bus.Subscribe(context.Background(), "chat:events", func(ctx context.Context, payload []byte) error {
		received <- payload
		return nil
	}))

	require.NoError(t, b.Publish(context.Background(), NewChat("alice", "hi")))

	select {
	case payload := <-received:
		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		assert.Equal(t, TypeChat, ev.Type)
		assert.NotZero(t, ev.TS, "publish must stamp a server timestamp")
		assert.WithinDuration(t, time.Now(), time.Unix(ev.TS, 0), 5*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
}

func TestRun_FansOutToAllRegisteredConnections(t *testing.T) {
	b, reg, _ := newTestBroadcaster(t)

	alice := newCaptureHandle()
	bob := newCaptureHandle()
	reg.Register("alice", alice)
	reg.Register("bob", bob)

	require.NoError(t, b.Run(context.Background()))
	require.NoError(t, b.Publish(context.Background(), NewChat("alice", "hello everyone")))

	waitWrite(t, alice)
	waitWrite(t, bob)

	for _, h := range []*captureHandle{alice, bob} {
		ev := h.lastEvent(t)
		assert.Equal(t, TypeChat, ev.Type)
		assert.Equal(t, "alice", ev.Username)
		assert.Equal(t, "hello everyone", ev.Message)
	}
}

func TestRun_PrunesConnectionWhoseWriteFails(t *testing.T) {
	b, reg, _ := newTestBroadcaster(t)

	dead := newCaptureHandle()
	dead.fail = true
	alive := newCaptureHandle()
	reg.Register("dead", dead)
	reg.Register("alive", alive)

	require.NoError(t, b.Run(context.Background()))
	require.NoError(t, b.Publish(context.Background(), NewChat("alice", "hi")))

	waitWrite(t, alive)
	assert.Eventually(t, func() bool { return reg.Len() == 1 }, 2*time.Second, 10*time.Millisecond,
		"the dead connection should be unregistered")
	_, stillThere := reg.Snapshot()["dead"]
	assert.False(t, stillThere)
}

func TestRun_SurvivesUndecodableBusEvent(t *testing.T) {
	b, reg, bus := newTestBroadcaster(t)

	h := newCaptureHandle()
	reg.Register("alice", h)

	require.NoError(t, b.Run(context.Background()))

	// Garbage straight onto the bus, then a valid event. The loop must
	// skip the garbage and still deliver the second event.
	require.NoError(t, bus.Publish(context.Background(), "chat:events", []byte("not json")))
	require.NoError(t, b.Publish(context.Background(), NewChat("alice", "still here")))

	waitWrite(t, h)
	assert.Equal(t, "still here", h.lastEvent(t).Message)
}
