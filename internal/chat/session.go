package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/realtime"
)

// Connection is the part of realtime.Manager a Session needs.
type Connection interface {
	IsConnected() bool
	Emit(event string, payload any) error
	Subscribe(event string, handler realtime.Handler) func()
	OnStateChange(listener realtime.StateListener) func()
}

type API interface {
	peerLister
	historyFetcher
}

type SessionState int

const (
	SessionDisconnected SessionState = iota
	SessionConnectedIdle
	SessionConnectedActive
)

func (s SessionState) String() string {
	switch s {
	case SessionDisconnected:
		return "disconnected"
	case SessionConnectedIdle:
		return "connected-idle"
	case SessionConnectedActive:
		return "connected-with-active-peer"
	default:
		return "unknown"
	}
}

// Notice is a transient, non-blocking warning for the user.
type Notice struct {
	Resource string
	Err      error
}

type SessionOptions struct {
	Viewer   Viewer
	Filter   FilterMode
	Logger   zerolog.Logger
	OnNotice func(Notice)
}

// Session wires the directory, store and dispatcher to one connection.
// Dispatcher handlers exist only in SessionConnectedActive and are removed
// on every transition out of it.
type Session struct {
	conn       Connection
	directory  *PeerDirectory
	store      *ConversationStore
	dispatcher *MessageDispatcher
	opts       SessionOptions
	log        zerolog.Logger

	// selectMu orders the store switch and the dispatcher rebind of concurrent selections.
	selectMu  sync.Mutex
	mu        sync.Mutex
	connected bool
	selected  *models.Peer
	state     SessionState
	stopWatch func()
	ctx       context.Context
	cancel    context.CancelFunc
	refreshes sync.WaitGroup
}

func NewSession(conn Connection, api API, opts SessionOptions) *Session {
	store := NewConversationStore(api, conn, opts.Viewer.ID, opts.Logger)
	return &Session{
		conn:       conn,
		directory:  NewPeerDirectory(api, opts.Viewer.Role, opts.Logger),
		store:      store,
		dispatcher: NewMessageDispatcher(conn, store, opts.Viewer, opts.Filter, opts.Logger),
		opts:       opts,
		log:        opts.Logger.With().Str("component", "session").Logger(),
	}
}

// Start follows the connection state, loads peers and selects the first one.
// A peer-list failure is reported as a notice and returned; RetryPeers can be
// called later.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel == nil {
		s.ctx, s.cancel = context.WithCancel(ctx)
	}
	if s.stopWatch == nil {
		s.stopWatch = s.conn.OnStateChange(s.onConnectionState)
	}
	s.connected = s.conn.IsConnected()
	s.transitionLocked()
	s.mu.Unlock()

	return s.RetryPeers(ctx)
}

func (s *Session) RetryPeers(ctx context.Context) error {
	peers, err := s.directory.Load(ctx)
	if err != nil {
		s.notice("peers", err)
		return err
	}

	s.selectMu.Lock()
	s.mu.Lock()
	hasSelection := s.selected != nil
	s.mu.Unlock()
	if hasSelection || len(peers) == 0 {
		s.selectMu.Unlock()
		return nil
	}
	token := s.switchLocked(peers[0])
	s.selectMu.Unlock()

	return s.load(ctx, peers[0], token)
}

func (s *Session) SelectPeer(ctx context.Context, peerID string) error {
	peer, ok := s.directory.Find(peerID)
	if !ok {
		return ErrUnknownPeer
	}
	return s.selectPeer(ctx, peer)
}

func (s *Session) selectPeer(ctx context.Context, peer models.Peer) error {
	s.selectMu.Lock()
	token := s.switchLocked(peer)
	s.selectMu.Unlock()

	return s.load(ctx, peer, token)
}

// switchLocked makes peer the selection and starts a fresh store load.
// The caller holds selectMu.
func (s *Session) switchLocked(peer models.Peer) uint64 {
	token := s.store.Begin(peer)
	s.mu.Lock()
	s.dispatcher.Unbind()
	s.selected = &peer
	s.transitionLocked()
	s.mu.Unlock()
	return token
}

func (s *Session) load(ctx context.Context, peer models.Peer, token uint64) error {
	err := s.store.Load(ctx, peer, token)
	if errors.Is(err, ErrStaleLoad) {
		return nil
	}
	if err != nil {
		if ctx.Err() == nil {
			s.notice("history", err)
		}
		return err
	}
	return nil
}

// Send emits a message to the selected peer. While disconnected it sends
// nothing and returns realtime.ErrNotConnected.
func (s *Session) Send(content string) error {
	if !s.conn.IsConnected() {
		return realtime.ErrNotConnected
	}
	return s.store.SendMessage(content)
}

// CanSend reports whether the send control should be enabled.
func (s *Session) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SessionConnectedActive
}

func (s *Session) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	s.dispatcher.Unbind()
	s.selected = nil
	s.connected = false
	s.state = SessionDisconnected
	s.mu.Unlock()

	s.refreshes.Wait()
	s.store.Clear()
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SelectedPeer() (models.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return models.Peer{}, false
	}
	return *s.selected, true
}

func (s *Session) Peers() []models.Peer {
	return s.directory.Peers()
}

func (s *Session) Messages() []models.Message {
	return s.store.Messages()
}

// OnMessagesChanged registers a callback for every change of the visible message list.
func (s *Session) OnMessagesChanged(fn func()) {
	s.store.OnChange(fn)
}

func (s *Session) onConnectionState(state realtime.State) {
	s.mu.Lock()
	previous := s.state
	s.connected = state == realtime.StateConnected
	s.transitionLocked()
	reconnected := previous == SessionDisconnected && s.state == SessionConnectedActive && s.ctx != nil
	var peerID string
	if reconnected {
		peerID = s.selected.ID
		s.refreshes.Add(1)
	}
	ctx := s.ctx
	s.mu.Unlock()

	if reconnected {
		go func() {
			defer s.refreshes.Done()
			s.refresh(ctx, peerID)
		}()
	}
}

// refresh reloads the history of peerID after a reconnect, unless the
// selection moved on or the connection dropped again in the meantime.
func (s *Session) refresh(ctx context.Context, peerID string) {
	s.selectMu.Lock()
	s.mu.Lock()
	current := s.selected
	active := s.state == SessionConnectedActive
	s.mu.Unlock()
	if current == nil || current.ID != peerID || !active || ctx.Err() != nil {
		s.selectMu.Unlock()
		return
	}
	peer := *current
	token := s.switchLocked(peer)
	s.selectMu.Unlock()

	s.log.Debug().Str("peer_id", peer.ID).Msg("reloading history after reconnect")
	_ = s.load(ctx, peer, token)
}

func (s *Session) transitionLocked() {
	next := SessionDisconnected
	if s.connected {
		next = SessionConnectedIdle
		if s.selected != nil {
			next = SessionConnectedActive
		}
	}

	if next == SessionConnectedActive {
		if bound, ok := s.dispatcher.Bound(); !ok || bound != s.selected.ID {
			s.dispatcher.Bind(*s.selected)
		}
	} else {
		s.dispatcher.Unbind()
	}

	if next != s.state {
		s.log.Info().Str("from", s.state.String()).Str("to", next.String()).Msg("session state changed")
	}
	s.state = next
}

func (s *Session) notice(resource string, err error) {
	if s.opts.OnNotice != nil {
		s.opts.OnNotice(Notice{Resource: resource, Err: err})
	}
}
