package models

import "encoding/json"

const (
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventMessageSent    = "message_sent"
	EventError          = "error"
)

// Envelope is the frame shape of the duplex connection in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SendMessagePayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
