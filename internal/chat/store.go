package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/metrics"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

type historyFetcher interface {
	History(ctx context.Context, peerID string) ([]models.Message, error)
}

type emitter interface {
	Emit(event string, payload any) error
}

// ConversationStore owns the message list of exactly one peer at a time.
// Switching peers always refetches history; nothing is kept warm.
type ConversationStore struct {
	fetcher historyFetcher
	conn    emitter
	selfID  string
	log     zerolog.Logger

	mu        sync.RWMutex
	peer      *models.Peer
	loadToken uint64
	loading   bool
	messages  []models.Message
	// live messages that arrived while history was in flight
	pending  []models.Message
	seen     map[string]struct{}
	onChange func()
}

func NewConversationStore(fetcher historyFetcher, conn emitter, selfID string, log zerolog.Logger) *ConversationStore {
	return &ConversationStore{
		fetcher: fetcher,
		conn:    conn,
		selfID:  selfID,
		log:     log.With().Str("component", "conversation_store").Logger(),
		seen:    make(map[string]struct{}),
	}
}

// OnChange registers a callback run after every change to the message list.
func (s *ConversationStore) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SelectPeer switches to peer and loads its history. If another selection
// happens before the response arrives, the response is dropped and
// ErrStaleLoad is returned.
func (s *ConversationStore) SelectPeer(ctx context.Context, peer models.Peer) error {
	token := s.Begin(peer)
	return s.Load(ctx, peer, token)
}

// Begin makes peer the active conversation with an empty list and returns the
// load token a following Load must present.
func (s *ConversationStore) Begin(peer models.Peer) uint64 {
	s.mu.Lock()
	s.loadToken++
	token := s.loadToken
	s.peer = &peer
	s.loading = true
	s.messages = nil
	s.pending = nil
	s.seen = make(map[string]struct{})
	s.mu.Unlock()

	s.changed()
	return token
}

func (s *ConversationStore) Load(ctx context.Context, peer models.Peer, token uint64) error {
	history, err := s.fetcher.History(ctx, peer.ID)

	s.mu.Lock()
	if token != s.loadToken {
		s.mu.Unlock()
		metrics.StaleLoadsDiscarded.Inc()
		s.log.Debug().Str("peer_id", peer.ID).Uint64("token", token).Msg("discarding stale history")
		return ErrStaleLoad
	}

	s.loading = false
	if err != nil {
		s.messages = s.pending
		s.pending = nil
		s.mu.Unlock()
		s.changed()
		return err
	}

	seen := make(map[string]struct{}, len(history)+len(s.pending))
	merged := make([]models.Message, 0, len(history)+len(s.pending))
	for _, batch := range [][]models.Message{history, s.pending} {
		for _, message := range batch {
			if message.ID != "" {
				if _, dup := seen[message.ID]; dup {
					continue
				}
				seen[message.ID] = struct{}{}
			}
			merged = append(merged, message)
		}
	}
	s.messages = merged
	s.pending = nil
	s.seen = seen
	s.mu.Unlock()

	s.changed()
	return nil
}

// AppendIncoming adds msg to the conversation with peerID if that conversation is
// the active one. It reports whether the message was kept.
func (s *ConversationStore) AppendIncoming(peerID string, msg models.Message) bool {
	s.mu.Lock()
	if s.peer == nil || s.peer.ID != peerID {
		s.mu.Unlock()
		metrics.MessagesDropped.WithLabelValues("inactive_peer").Inc()
		return false
	}
	if msg.ID != "" {
		if _, dup := s.seen[msg.ID]; dup {
			s.mu.Unlock()
			metrics.MessagesDropped.WithLabelValues("duplicate").Inc()
			return false
		}
		s.seen[msg.ID] = struct{}{}
	}
	if s.loading {
		s.pending = append(s.pending, msg)
	} else {
		s.messages = append(s.messages, msg)
	}
	s.mu.Unlock()

	s.changed()
	return true
}

// SendMessage emits send_message for the active peer. The message shows up only
// when the server echoes it back as message_sent.
func (s *ConversationStore) SendMessage(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	s.mu.RLock()
	peer := s.peer
	s.mu.RUnlock()
	if peer == nil {
		return ErrNoPeerSelected
	}

	err := s.conn.Emit(models.EventSendMessage, models.SendMessagePayload{
		SenderID:   s.selfID,
		ReceiverID: peer.ID,
		Content:    content,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Clear drops the active conversation and invalidates any load in flight.
func (s *ConversationStore) Clear() {
	s.mu.Lock()
	s.loadToken++
	s.peer = nil
	s.loading = false
	s.messages = nil
	s.pending = nil
	s.seen = make(map[string]struct{})
	s.mu.Unlock()

	s.changed()
}

func (s *ConversationStore) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message{}, s.messages...)
}

func (s *ConversationStore) ActivePeer() (models.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.peer == nil {
		return models.Peer{}, false
	}
	return *s.peer, true
}

func (s *ConversationStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *ConversationStore) LoadToken() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadToken
}

func (s *ConversationStore) changed() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
