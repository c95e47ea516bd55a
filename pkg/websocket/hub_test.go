package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/backsoul/devquiz/pkg/engine"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	failing  bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, append([]byte(nil), data...))

	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true

	return nil
}

func (c *fakeConn) received() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, 0, len(c.messages))
	for _, raw := range c.messages {
		var msg Message
		if err := json.Unmarshal(raw, &msg); err == nil {
			out = append(out, msg)
		}
	}

	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func helperHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return hub, cancel
}

func TestHubRegisterSendsInitial(t *testing.T) {
	t.Parallel()

	hub, _ := helperHub(t)
	conn := &fakeConn{}
	initial, err := EncodeMessage("s1", MessageSnapshot, engine.Snapshot{TotalQuestions: 3})
	require.NoError(t, err)

	hub.Register("s1", conn, initial)
	require.Eventually(t, func() bool { return len(conn.received()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, hub.ClientCount("s1"))

	msg := conn.received()[0]
	require.Equal(t, MessageSnapshot, msg.Type)
	require.Equal(t, "s1", msg.SessionID)
}

func TestHubBroadcastPerSession(t *testing.T) {
	t.Parallel()

	hub, _ := helperHub(t)
	a, b, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register("s1", a, nil)
	hub.Register("s1", b, nil)
	hub.Register("s2", other, nil)
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 2 && hub.ClientCount("s2") == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastSnapshot("s1", engine.Snapshot{CurrentIndex: 1, State: engine.StateCorrect})
	hub.BroadcastSnapshot("s1", engine.Snapshot{Closed: true})

	require.Eventually(t, func() bool { return len(a.received()) == 2 && len(b.received()) == 2 }, time.Second, 5*time.Millisecond)
	require.Empty(t, other.received())

	got := a.received()
	require.Equal(t, MessageSnapshot, got[0].Type)
	require.Equal(t, MessageClosed, got[1].Type)

	hub.Unregister("s1", a)
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, a.isClosed())
}

func TestHubDropsFailingConn(t *testing.T) {
	t.Parallel()

	hub, _ := helperHub(t)
	good, bad := &fakeConn{}, &fakeConn{failing: true}
	hub.Register("s1", good, nil)
	hub.Register("s1", bad, nil)
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 2 }, time.Second, 5*time.Millisecond)

	hub.BroadcastMessage("s1", MessageSnapshot, map[string]int{"n": 1})
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, bad.isClosed())
	require.False(t, good.isClosed())
	require.Len(t, good.received(), 1)
}

func TestHubShutdownClosesClients(t *testing.T) {
	t.Parallel()

	hub, cancel := helperHub(t)
	conn := &fakeConn{}
	hub.Register("s1", conn, nil)
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
	require.Zero(t, hub.ClientCount("s1"))

	// Después del cierre no se bloquea
	late := &fakeConn{}
	hub.Register("s1", late, nil)
	require.True(t, late.isClosed())
	hub.BroadcastMessage("s1", MessageSnapshot, nil)
	hub.Unregister("s1", conn)
}
