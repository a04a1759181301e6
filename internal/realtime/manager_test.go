package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoServer struct {
	*httptest.Server
	connections atomic.Int32
	dropFirst   bool

	mu     sync.Mutex
	tokens []string
	auth   []string
}

func newEchoServer(t *testing.T, dropFirst bool) *echoServer {
	t.Helper()
	srv := &echoServer{dropFirst: dropFirst}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.mu.Lock()
		srv.tokens = append(srv.tokens, r.URL.Query().Get("token"))
		srv.auth = append(srv.auth, r.Header.Get("Authorization"))
		srv.mu.Unlock()

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		n := srv.connections.Add(1)
		if srv.dropFirst && n == 1 {
			return
		}

		for {
			msgType, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func newTestManager(url string) *Manager {
	return NewManager(Options{
		URL:            url,
		Token:          "session-token",
		ConnectTimeout: time.Second,
		SendTimeout:    time.Second,
		Backoff: Backoff{
			Initial:    10 * time.Millisecond,
			Max:        50 * time.Millisecond,
			Multiplier: 2,
		},
		Logger: zerolog.Nop(),
	})
}

func TestEmitWhileDisconnectedIsGuardedNoop(t *testing.T) {
	m := newTestManager("ws://127.0.0.1:1/ws")

	assert.False(t, m.IsConnected())
	assert.ErrorIs(t, m.Emit("send_message", map[string]string{"content": "hi"}), ErrNotConnected)
	require.NoError(t, m.Close())
	assert.Equal(t, StateClosed, m.State())
	assert.ErrorIs(t, m.Start(context.Background()), ErrClosed)
}

func TestSubscribeReceivesEchoedEvents(t *testing.T) {
	srv := newEchoServer(t, false)
	m := newTestManager(srv.wsURL())
	defer m.Close()

	received := make(chan json.RawMessage, 1)
	unsubscribe := m.Subscribe("message_sent", func(payload json.RawMessage) {
		received <- payload
	})
	defer unsubscribe()

	require.NoError(t, m.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.WaitConnected(ctx))

	require.NoError(t, m.Emit("message_sent", map[string]string{"content": "hello"}))

	select {
	case payload := <-received:
		assert.JSONEq(t, `{"content":"hello"}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed event")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.NotEmpty(t, srv.tokens)
	assert.Equal(t, "session-token", srv.tokens[0])
	assert.Equal(t, "Bearer session-token", srv.auth[0])
}

func TestUnsubscribedHandlerDoesNotFire(t *testing.T) {
	srv := newEchoServer(t, false)
	m := newTestManager(srv.wsURL())
	defer m.Close()

	var stale atomic.Int32
	unsubscribe := m.Subscribe("receive_message", func(json.RawMessage) { stale.Add(1) })

	fresh := make(chan struct{}, 1)
	m.Subscribe("receive_message", func(json.RawMessage) { fresh <- struct{}{} })

	unsubscribe()
	unsubscribe()

	require.NoError(t, m.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.WaitConnected(ctx))
	require.NoError(t, m.Emit("receive_message", map[string]string{}))

	select {
	case <-fresh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for active handler")
	}
	assert.Zero(t, stale.Load())
}

func TestReconnectKeepsSubscriptions(t *testing.T) {
	srv := newEchoServer(t, true)
	m := newTestManager(srv.wsURL())
	defer m.Close()

	var connects atomic.Int32
	m.OnStateChange(func(s State) {
		if s == StateConnected {
			connects.Add(1)
		}
	})

	received := make(chan struct{}, 1)
	m.Subscribe("receive_message", func(json.RawMessage) {
		select {
		case received <- struct{}{}:
		default:
		}
	})

	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return srv.connections.Load() >= 2 && m.IsConnected()
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, connects.Load(), int32(2))

	require.NoError(t, m.Emit("receive_message", map[string]string{"content": "after reconnect"}))
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not active after reconnect")
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	m := NewManager(Options{
		URL:            "ws://127.0.0.1:1/ws",
		ConnectTimeout: 200 * time.Millisecond,
		Backoff: Backoff{
			Initial:     time.Millisecond,
			Max:         2 * time.Millisecond,
			Multiplier:  2,
			MaxAttempts: 2,
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, m.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.ErrorIs(t, m.WaitConnected(ctx), ErrGaveUp)
	assert.Equal(t, StateClosed, m.State())
	require.NoError(t, m.Close())
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	m := newTestManager("ws://unused")
	ok := make(chan struct{}, 1)
	m.Subscribe("receive_message", func(json.RawMessage) { panic("boom") })
	m.Subscribe("receive_message", func(json.RawMessage) { ok <- struct{}{} })

	m.dispatch([]byte(`{"event":"receive_message","payload":{}}`))
	m.dispatch([]byte(`{"payload":{}}`))

	select {
	case <-ok:
	default:
		t.Fatal("second handler was not invoked")
	}
}

// newFlappingServer upgrades every request and hangs up right away, after
// optionally writing one frame.
func newFlappingServer(t *testing.T, greeting []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var accepts atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepts.Add(1)
		if greeting != nil {
			_ = ws.WriteMessage(websocket.TextMessage, greeting)
		}
		_ = ws.Close()
	}))
	t.Cleanup(srv.Close)
	return srv, &accepts
}

func newFlappingManager(url string) *Manager {
	return NewManager(Options{
		URL:            url,
		ConnectTimeout: time.Second,
		StableAfter:    time.Second,
		Backoff: Backoff{
			Initial:     5 * time.Millisecond,
			Max:         20 * time.Millisecond,
			Multiplier:  2,
			MaxAttempts: 2,
		},
		Logger: zerolog.Nop(),
	})
}

func TestShortLivedConnectionsCountTowardsMaxAttempts(t *testing.T) {
	srv, accepts := newFlappingServer(t, nil)
	m := newFlappingManager("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws")
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return m.State() == StateClosed
	}, 3*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, m.Err(), ErrGaveUp)
	assert.Equal(t, int32(3), accepts.Load())
}

func TestConnectionThatDeliversAFrameResetsBackoff(t *testing.T) {
	srv, accepts := newFlappingServer(t, []byte(`{"event":"error","payload":{"error":"busy"}}`))
	m := newFlappingManager("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws")
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return accepts.Load() >= 5
	}, 3*time.Second, 10*time.Millisecond)
	assert.NoError(t, m.Err())
	assert.NotEqual(t, StateClosed, m.State())
}
