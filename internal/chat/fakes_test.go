package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/realtime"
)

type emission struct {
	event   string
	payload any
}

type fakeConn struct {
	mu        sync.Mutex
	connected bool
	emitErr   error
	emits     []emission
	nextID    int
	handlers  map[int]fakeHandler
	listeners []realtime.StateListener
}

type fakeHandler struct {
	event string
	fn    realtime.Handler
}

func newFakeConn(connected bool) *fakeConn {
	return &fakeConn{connected: connected, handlers: make(map[int]fakeHandler)}
}

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return realtime.ErrNotConnected
	}
	if c.emitErr != nil {
		return c.emitErr
	}
	c.emits = append(c.emits, emission{event: event, payload: payload})
	return nil
}

func (c *fakeConn) Subscribe(event string, handler realtime.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.handlers[id] = fakeHandler{event: event, fn: handler}
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

func (c *fakeConn) OnStateChange(listener realtime.StateListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
	return func() {
		c.mu.Lock()
		c.listeners = nil
		c.mu.Unlock()
	}
}

func (c *fakeConn) subscribers(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, h := range c.handlers {
		if h.event == event {
			n++
		}
	}
	return n
}

// fire delivers msg to every handler subscribed to event.
func (c *fakeConn) fire(event string, msg models.Message) {
	payload, _ := json.Marshal(msg)
	c.mu.Lock()
	var fns []realtime.Handler
	for _, h := range c.handlers {
		if h.event == event {
			fns = append(fns, h.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

func (c *fakeConn) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	listeners := append([]realtime.StateListener(nil), c.listeners...)
	c.mu.Unlock()

	state := realtime.StateDisconnected
	if connected {
		state = realtime.StateConnected
	}
	for _, listener := range listeners {
		listener(state)
	}
}

func (c *fakeConn) emitted() []emission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emission(nil), c.emits...)
}

type historyReply struct {
	messages []models.Message
	err      error
}

// fakeAPI answers History immediately unless a gate channel is registered for
// the peer, in which case the call blocks until the test sends a reply.
type fakeAPI struct {
	mu       sync.Mutex
	peers    []models.Peer
	peersErr error
	history  map[string][]models.Message
	gates    map[string]chan historyReply
	started  chan string
	calls    []string
}

func newFakeAPI(peers ...models.Peer) *fakeAPI {
	return &fakeAPI{
		peers:   peers,
		history: make(map[string][]models.Message),
		gates:   make(map[string]chan historyReply),
		started: make(chan string, 16),
	}
}

func (a *fakeAPI) gate(peerID string) chan historyReply {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch := make(chan historyReply, 1)
	a.gates[peerID] = ch
	return ch
}

func (a *fakeAPI) ListPeers(_ context.Context, _ models.Role) ([]models.Peer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.peersErr != nil {
		return nil, a.peersErr
	}
	return append([]models.Peer(nil), a.peers...), nil
}

func (a *fakeAPI) History(ctx context.Context, peerID string) ([]models.Message, error) {
	a.mu.Lock()
	a.calls = append(a.calls, peerID)
	gate := a.gates[peerID]
	history := a.history[peerID]
	a.mu.Unlock()

	a.started <- peerID
	if gate == nil {
		return history, nil
	}
	select {
	case reply := <-gate:
		return reply.messages, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *fakeAPI) historyCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

var errBackendDown = errors.New("backend down")

var (
	coachReza  = models.Peer{ID: "c1", Name: "Reza", Role: models.RoleCoach}
	memberAli  = models.Peer{ID: "m1", Name: "Ali", Role: models.RoleMember}
	memberSara = models.Peer{ID: "m2", Name: "Sara", Role: models.RoleMember}
)

func fromMember(id, memberID, content string) models.Message {
	return models.Message{ID: id, SenderID: memberID, ReceiverID: coachReza.ID, SenderRole: models.RoleMember, Content: content}
}

func fromCoach(id, memberID, content string) models.Message {
	return models.Message{ID: id, SenderID: coachReza.ID, ReceiverID: memberID, SenderRole: models.RoleCoach, Content: content}
}

func contents(messages []models.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}
