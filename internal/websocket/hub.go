package chatws

import (
	"context"
	"encoding/json"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/metrics"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/services"
	"golang.org/x/time/rate"
)

// Hub fans chat events out to every open socket of a user.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *services.ChatDelivery
	reply      chan clientFrame
	done       chan struct{}
	log        zerolog.Logger

	limitMu  sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	role   models.Role
	send   chan []byte
}

type clientFrame struct {
	client  *Client
	payload []byte
}

type sender interface {
	SendMessage(
		ctx context.Context,
		actorID string,
		role models.Role,
		receiverID string,
		content string,
	) (*services.ChatDelivery, error)
}

// NewHub limits send_message per user to perSecond with the given burst.
// A non-positive perSecond disables the limit.
func NewHub(log zerolog.Logger, perSecond float64, burst int) *Hub {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *services.ChatDelivery, 64),
		reply:      make(chan clientFrame, 16),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "hub").Logger(),
		limiters:   make(map[string]*rate.Limiter),
		rate:       limit,
		burst:      burst,
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, role models.Role) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		role:   role,
		send:   make(chan []byte, 32),
	}
}

// Run owns the client set until ctx is done. Every other method hands work
// to it through channels.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for userID, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			metrics.HubClients.Set(0)
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			metrics.HubClients.Inc()
			h.log.Debug().Str("user_id", client.userID).Msg("client registered")
		case client := <-h.unregister:
			h.drop(client)
		case delivery := <-h.broadcast:
			h.deliver(delivery)
		case frame := <-h.reply:
			h.sendToClient(frame.client, frame.payload)
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) publish(delivery *services.ChatDelivery) {
	select {
	case h.broadcast <- delivery:
	case <-h.done:
	}
}

func (h *Hub) drop(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		close(client.send)
		metrics.HubClients.Dec()
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

// deliver echoes message_sent to the sender's sockets and pushes
// receive_message to the recipient's.
func (h *Hub) deliver(delivery *services.ChatDelivery) {
	h.sendToUser(delivery.Message.SenderID, models.EventMessageSent, delivery.Message)
	if delivery.RecipientID != delivery.Message.SenderID {
		h.sendToUser(delivery.RecipientID, models.EventReceiveMessage, delivery.Message)
	}
}

func (h *Hub) sendToUser(userID, event string, payload any) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	encoded, err := encodeEnvelope(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}

	for client := range set {
		if h.sendToClient(client, encoded) {
			metrics.HubDeliveries.WithLabelValues(event).Inc()
		}
	}
}

// sendToClient queues payload for a registered client. A client whose buffer
// is full is dropped.
func (h *Hub) sendToClient(client *Client, payload []byte) bool {
	if _, ok := h.clients[client.userID][client]; !ok {
		return false
	}
	select {
	case client.send <- payload:
		return true
	default:
		h.log.Warn().Str("user_id", client.userID).Msg("client send buffer full, dropping client")
		h.drop(client)
		return false
	}
}

func (h *Hub) allow(userID string) bool {
	h.limitMu.Lock()
	limiter, ok := h.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(h.rate, h.burst)
		h.limiters[userID] = limiter
	}
	h.limitMu.Unlock()
	return limiter.Allow()
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Envelope{Event: event, Payload: raw})
}

func (c *Client) ReadPump(service sender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame models.Envelope
		if err := json.Unmarshal(data, &frame); err != nil {
			c.writeError("invalid frame")
			continue
		}
		if frame.Event != models.EventSendMessage {
			c.writeError("unsupported event")
			continue
		}

		var incoming models.SendMessagePayload
		if err := json.Unmarshal(frame.Payload, &incoming); err != nil {
			c.writeError("invalid message payload")
			continue
		}
		if incoming.SenderID != "" && incoming.SenderID != c.userID {
			c.writeError("sender does not match token")
			continue
		}
		if !c.hub.allow(c.userID) {
			metrics.HubRateLimited.Inc()
			c.writeError("too many messages")
			continue
		}

		delivery, err := service.SendMessage(
			context.Background(),
			c.userID,
			c.role,
			incoming.ReceiverID,
			incoming.Content,
		)
		if err != nil {
			c.hub.log.Debug().Err(err).Str("user_id", c.userID).Msg("send_message rejected")
			c.writeError("failed to send message")
			continue
		}

		c.hub.publish(delivery)
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) writeError(message string) {
	payload, err := encodeEnvelope(models.EventError, models.ErrorPayload{Error: message})
	if err != nil {
		return
	}
	select {
	case c.hub.reply <- clientFrame{client: c, payload: payload}:
	case <-c.hub.done:
	}
}
