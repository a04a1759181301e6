package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

type MessageRepository struct {
	mu       sync.RWMutex
	messages []models.Message
	now      func() time.Time
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{now: time.Now}
}

func (r *MessageRepository) Create(
	_ context.Context,
	senderID string,
	receiverID string,
	senderRole models.Role,
	content string,
) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	message := models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		SenderRole: senderRole,
		Content:    content,
		Timestamp:  r.now().UTC(),
	}
	r.messages = append(r.messages, message)
	return &message, nil
}

// ListBetween returns the conversation of a and b, oldest first.
func (r *MessageRepository) ListBetween(_ context.Context, a, b string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := make([]models.Message, 0)
	for _, message := range r.messages {
		if (message.SenderID == a && message.ReceiverID == b) || (message.SenderID == b && message.ReceiverID == a) {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

// MarkRead flags every message sent by peerID to readerID as read.
func (r *MessageRepository) MarkRead(_ context.Context, readerID, peerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ReceiverID == readerID && r.messages[i].SenderID == peerID {
			r.messages[i].Read = true
		}
	}
	return nil
}
