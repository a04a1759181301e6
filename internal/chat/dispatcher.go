package chat

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/metrics"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/realtime"
)

// FilterMode selects how inbound messages are matched to the open conversation.
type FilterMode int

const (
	// FilterByRole accepts a message when its sender role fits the event. A message
	// from another peer of the same role is accepted too; it is only logged.
	FilterByRole FilterMode = iota
	// FilterByPeer also requires the counterpart id in the message to be the bound peer.
	FilterByPeer
)

func ParseFilterMode(value string) FilterMode {
	if strings.EqualFold(strings.TrimSpace(value), "peer") {
		return FilterByPeer
	}
	return FilterByRole
}

func (m FilterMode) String() string {
	if m == FilterByPeer {
		return "peer"
	}
	return "role"
}

const (
	ReasonRoleMismatch = "role_mismatch"
	ReasonMisrouted    = "misrouted"
	ReasonUnknownEvent = "unknown_event"
)

type Viewer struct {
	ID   string
	Role models.Role
}

// Accept decides whether msg, delivered as event, belongs to the viewer's
// conversation with peer. A non-empty reason with ok=true flags a suspect
// message that was let through.
func Accept(event string, viewer Viewer, peer models.Peer, msg models.Message, mode FilterMode) (ok bool, reason string) {
	var want models.Role
	switch event {
	case models.EventReceiveMessage:
		want = viewer.Role.Counterpart()
	case models.EventMessageSent:
		want = viewer.Role
	default:
		return false, ReasonUnknownEvent
	}
	if msg.SenderRole != want {
		return false, ReasonRoleMismatch
	}

	counterpart := msg.Counterpart(viewer.Role)
	if counterpart == peer.ID {
		return true, ""
	}
	if mode == FilterByPeer {
		return false, ReasonMisrouted
	}
	if counterpart != "" {
		return true, ReasonMisrouted
	}
	return true, ""
}

type subscriber interface {
	Subscribe(event string, handler realtime.Handler) func()
}

type appender interface {
	AppendIncoming(peerID string, msg models.Message) bool
}

// MessageDispatcher routes receive_message and message_sent events into the
// conversation store for one bound peer.
type MessageDispatcher struct {
	conn   subscriber
	store  appender
	viewer Viewer
	mode   FilterMode
	log    zerolog.Logger

	mu           sync.Mutex
	bound        *models.Peer
	unsubscribes []func()
}

func NewMessageDispatcher(conn subscriber, store appender, viewer Viewer, mode FilterMode, log zerolog.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		conn:   conn,
		store:  store,
		viewer: viewer,
		mode:   mode,
		log:    log.With().Str("component", "dispatcher").Logger(),
	}
}

// Bind removes any existing handlers and installs new ones for peer.
func (d *MessageDispatcher) Bind(peer models.Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.unbindLocked()
	d.bound = &peer
	d.unsubscribes = []func(){
		d.conn.Subscribe(models.EventReceiveMessage, d.handler(models.EventReceiveMessage, peer)),
		d.conn.Subscribe(models.EventMessageSent, d.handler(models.EventMessageSent, peer)),
	}
	d.log.Debug().Str("peer_id", peer.ID).Msg("dispatcher bound")
}

func (d *MessageDispatcher) Unbind() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unbindLocked()
}

func (d *MessageDispatcher) unbindLocked() {
	for _, unsubscribe := range d.unsubscribes {
		unsubscribe()
	}
	d.unsubscribes = nil
	d.bound = nil
}

func (d *MessageDispatcher) Bound() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bound == nil {
		return "", false
	}
	return d.bound.ID, true
}

func (d *MessageDispatcher) handler(event string, peer models.Peer) realtime.Handler {
	return func(payload json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			metrics.MessagesDropped.WithLabelValues("decode").Inc()
			d.log.Warn().Err(err).Str("event", event).Msg("undecodable message payload")
			return
		}

		ok, reason := Accept(event, d.viewer, peer, msg, d.mode)
		if reason == ReasonMisrouted {
			d.log.Warn().
				Str("event", event).
				Str("peer_id", peer.ID).
				Str("message_id", msg.ID).
				Str("counterpart_id", msg.Counterpart(d.viewer.Role)).
				Bool("accepted", ok).
				Msg("message counterpart does not match selected peer")
		}
		if !ok {
			metrics.MessagesDropped.WithLabelValues(reason).Inc()
			return
		}

		d.store.AppendIncoming(peer.ID, msg)
	}
}
