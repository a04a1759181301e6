// Package realtime owns the single duplex connection of an authenticated session.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/metrics"
	"github.com/tidwall/gjson"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultSendTimeout    = 5 * time.Second
	defaultPingInterval   = 25 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultStableAfter    = 5 * time.Second
	writeWait             = 5 * time.Second
	maxFrameSize          = 1 << 20
	sendBuffer            = 64
)

// Handler receives the raw payload of one inbound event.
type Handler func(payload json.RawMessage)

type StateListener func(State)

type Options struct {
	URL            string
	Token          string
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	// StableAfter is how long a connection must stay up, without any inbound
	// frame, before the reconnect schedule starts over.
	StableAfter    time.Duration
	Backoff        Backoff
	Dialer         *websocket.Dialer
	Logger         zerolog.Logger
}

type frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

type subscription struct {
	id     uint64
	fn     Handler
	active atomic.Bool
}

type connection struct {
	ws       *websocket.Conn
	send     chan []byte
	closed   chan struct{}
	once     sync.Once
	received atomic.Bool
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

func (c *connection) closeGracefully() {
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	c.close()
}

// Manager keeps exactly one live connection and reconnects with backoff when it drops.
// Subscriptions are held by the Manager, so they stay active across reconnects.
type Manager struct {
	opts Options
	log  zerolog.Logger

	mu        sync.RWMutex
	state     State
	current   *connection
	handlers  map[string][]*subscription
	listeners map[uint64]StateListener
	nextID    uint64
	err       error
	cancel    context.CancelFunc
	done      chan struct{}
	doneOnce  sync.Once
}

func NewManager(opts Options) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.StableAfter <= 0 {
		opts.StableAfter = defaultStableAfter
	}
	if opts.Backoff.Initial <= 0 {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.ConnectTimeout,
		}
	}

	return &Manager{
		opts:      opts,
		log:       opts.Logger.With().Str("component", "realtime").Logger(),
		state:     StateDisconnected,
		handlers:  make(map[string][]*subscription),
		listeners: make(map[uint64]StateListener),
		done:      make(chan struct{}),
	}
}

// Start launches the connection loop. It returns immediately; use WaitConnected to block.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.cancel != nil {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Close tears the connection down for good. Subscriptions are discarded.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.mu.Unlock()

	if cancel == nil {
		m.setState(StateClosed)
		m.doneOnce.Do(func() { close(m.done) })
	} else {
		cancel()
		<-m.done
	}

	m.mu.Lock()
	m.handlers = make(map[string][]*subscription)
	m.mu.Unlock()
	return nil
}

func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateConnected && m.current != nil
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Err reports why the loop stopped, if it stopped on its own.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// WaitConnected blocks until the connection is open, the manager closes, or ctx ends.
func (m *Manager) WaitConnected(ctx context.Context) error {
	changes := make(chan State, 8)
	unsubscribe := m.OnStateChange(func(s State) {
		select {
		case changes <- s:
		default:
		}
	})
	defer unsubscribe()

	for {
		switch m.State() {
		case StateConnected:
			return nil
		case StateClosed:
			if err := m.Err(); err != nil {
				return err
			}
			return ErrClosed
		}

		select {
		case <-changes:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Emit queues one event. While disconnected it sends nothing and returns ErrNotConnected.
func (m *Manager) Emit(event string, payload any) error {
	m.mu.RLock()
	conn := m.current
	state := m.state
	m.mu.RUnlock()

	if conn == nil || state != StateConnected {
		metrics.EventsEmitted.WithLabelValues(event, "blocked").Inc()
		return ErrNotConnected
	}

	data, err := json.Marshal(frame{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	timer := time.NewTimer(m.opts.SendTimeout)
	defer timer.Stop()

	select {
	case conn.send <- data:
		metrics.EventsEmitted.WithLabelValues(event, "queued").Inc()
		return nil
	case <-conn.closed:
		metrics.EventsEmitted.WithLabelValues(event, "blocked").Inc()
		return ErrNotConnected
	case <-timer.C:
		metrics.EventsEmitted.WithLabelValues(event, "timeout").Inc()
		return ErrSendTimeout
	}
}

// Subscribe registers handler for event. The returned func is idempotent; frames
// dispatched after it returns skip the handler.
func (m *Manager) Subscribe(event string, handler Handler) func() {
	m.mu.Lock()
	m.nextID++
	sub := &subscription{id: m.nextID, fn: handler}
	sub.active.Store(true)
	m.handlers[event] = append(m.handlers[event], sub)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			m.mu.Lock()
			defer m.mu.Unlock()
			subs := m.handlers[event]
			for i, candidate := range subs {
				if candidate.id == sub.id {
					m.handlers[event] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(m.handlers[event]) == 0 {
				delete(m.handlers, event)
			}
		})
	}
}

func (m *Manager) OnStateChange(listener StateListener) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = listener
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) run(ctx context.Context) {
	defer func() {
		m.setState(StateClosed)
		m.doneOnce.Do(func() { close(m.done) })
	}()

	attempt := 0
	for {
		if attempt > 0 {
			if m.opts.Backoff.Exhausted(attempt) {
				m.mu.Lock()
				m.err = ErrGaveUp
				m.mu.Unlock()
				m.log.Error().Int("attempts", attempt-1).Msg("giving up on realtime connection")
				return
			}
			delay := m.opts.Backoff.Delay(attempt)
			metrics.SocketReconnects.Inc()
			m.log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		m.setState(StateConnecting)
		ws, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Msg("realtime dial failed")
			m.setState(StateDisconnected)
			attempt++
			continue
		}

		stable := m.serve(ctx, ws)
		if ctx.Err() != nil {
			return
		}
		if stable {
			attempt = 1
		} else {
			attempt++
		}
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := url.Parse(m.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	header := http.Header{}
	if m.opts.Token != "" {
		query := target.Query()
		query.Set("token", m.opts.Token)
		target.RawQuery = query.Encode()
		header.Set("Authorization", "Bearer "+m.opts.Token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	ws, resp, err := m.opts.Dialer.DialContext(dialCtx, target.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return ws, nil
}

// serve runs one connection until it drops. It reports whether the connection
// was usable: it delivered a frame or stayed open for StableAfter.
func (m *Manager) serve(ctx context.Context, ws *websocket.Conn) bool {
	started := time.Now()
	conn := &connection{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}

	m.mu.Lock()
	m.current = conn
	m.mu.Unlock()
	m.setState(StateConnected)
	m.log.Info().Str("url", m.opts.URL).Msg("realtime connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.writeLoop(conn)
	}()
	stop := context.AfterFunc(ctx, conn.closeGracefully)

	m.readLoop(conn)

	stop()
	conn.close()
	<-writerDone

	m.mu.Lock()
	if m.current == conn {
		m.current = nil
	}
	m.mu.Unlock()
	stable := conn.received.Load() || time.Since(started) >= m.opts.StableAfter
	if ctx.Err() == nil {
		m.setState(StateDisconnected)
		m.log.Warn().Bool("stable", stable).Msg("realtime connection lost")
	}
	return stable
}

func (m *Manager) readLoop(conn *connection) {
	ws := conn.ws
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		conn.received.Store(true)
		return ws.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-conn.closed:
			default:
				m.log.Debug().Err(err).Msg("realtime read ended")
			}
			return
		}
		conn.received.Store(true)
		_ = ws.SetReadDeadline(time.Now().Add(m.opts.PongWait))
		m.dispatch(data)
	}
}

func (m *Manager) writeLoop(conn *connection) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.closed:
			return
		case data := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				m.log.Warn().Err(err).Msg("realtime write failed")
				conn.close()
				return
			}
		case <-ticker.C:
			if err := conn.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.close()
				return
			}
		}
	}
}

// dispatch runs the handlers of one frame serially, in subscription order.
func (m *Manager) dispatch(data []byte) {
	event := gjson.GetBytes(data, "event")
	if event.Type != gjson.String || event.String() == "" {
		metrics.MessagesDropped.WithLabelValues("decode").Inc()
		m.log.Warn().Int("bytes", len(data)).Msg("frame without event name")
		return
	}
	name := event.String()
	metrics.EventsReceived.WithLabelValues(name).Inc()

	var payload json.RawMessage
	if raw := gjson.GetBytes(data, "payload"); raw.Exists() {
		payload = json.RawMessage(raw.Raw)
	}

	m.mu.RLock()
	subs := make([]*subscription, len(m.handlers[name]))
	copy(subs, m.handlers[name])
	m.mu.RUnlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		m.invoke(name, sub.fn, payload)
	}
}

func (m *Manager) invoke(event string, fn Handler, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("event", event).Interface("panic", r).Msg("realtime handler panicked")
		}
	}()
	fn(payload)
}

func (m *Manager) setState(next State) {
	m.mu.Lock()
	if m.state == next || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = next
	listeners := make([]StateListener, 0, len(m.listeners))
	ids := make([]uint64, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.Unlock()

	if next == StateConnected {
		metrics.SocketConnected.Set(1)
	} else {
		metrics.SocketConnected.Set(0)
	}

	for _, listener := range listeners {
		listener(next)
	}
}
