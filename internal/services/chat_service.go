package services

import (
	"context"
	"errors"
	"strings"

	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/repository"
)

type userReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

type messageStore interface {
	Create(ctx context.Context, senderID, receiverID string, senderRole models.Role, content string) (*models.Message, error)
	ListBetween(ctx context.Context, a, b string) ([]models.Message, error)
	MarkRead(ctx context.Context, readerID, peerID string) error
}

type notificationWriter interface {
	Create(ctx context.Context, userID string, notification *models.RawNotification) error
}

type ChatService struct {
	userRepo         userReader
	messageRepo      messageStore
	notificationRepo notificationWriter
}

// ChatDelivery is a stored message and the user it has to reach.
type ChatDelivery struct {
	Message     *models.Message
	RecipientID string
}

func NewChatService(
	userRepo userReader,
	messageRepo messageStore,
	notificationRepo notificationWriter,
) *ChatService {
	return &ChatService{
		userRepo:         userRepo,
		messageRepo:      messageRepo,
		notificationRepo: notificationRepo,
	}
}

// ListPeers returns the users of role want. Coaches may list members and
// members may list coaches.
func (s *ChatService) ListPeers(
	ctx context.Context,
	role models.Role,
	want models.Role,
) ([]models.Peer, error) {
	if !role.Valid() || want != role.Counterpart() {
		return nil, ErrForbidden
	}

	users, err := s.userRepo.ListByRole(ctx, want)
	if err != nil {
		return nil, err
	}

	peers := make([]models.Peer, 0, len(users))
	for _, user := range users {
		peers = append(peers, user.AsPeer())
	}
	return peers, nil
}

// History returns the actor's conversation with peerID and marks the peer's
// messages as read.
func (s *ChatService) History(
	ctx context.Context,
	actorID string,
	role models.Role,
	peerID string,
) ([]models.Message, error) {
	if _, err := s.counterpart(ctx, role, peerID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListBetween(ctx, actorID, peerID)
	if err != nil {
		return nil, err
	}
	if err := s.messageRepo.MarkRead(ctx, actorID, peerID); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID string,
	role models.Role,
	receiverID string,
	content string,
) (*ChatDelivery, error) {
	if actorID == "" || receiverID == "" || actorID == receiverID {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	sender, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if sender.Role != role {
		return nil, ErrForbidden
	}
	if _, err := s.counterpart(ctx, role, receiverID); err != nil {
		return nil, err
	}

	message, err := s.messageRepo.Create(ctx, actorID, receiverID, role, trimmed)
	if err != nil {
		return nil, err
	}

	notification := &models.RawNotification{
		Type:       models.NotificationChat,
		Message:    trimmed,
		RelatedID:  actorID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
	}
	if err := s.notificationRepo.Create(ctx, receiverID, notification); err != nil {
		return nil, err
	}

	return &ChatDelivery{
		Message:     message,
		RecipientID: receiverID,
	}, nil
}

func (s *ChatService) counterpart(ctx context.Context, role models.Role, peerID string) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(peerID) == "" {
		return nil, ErrInvalidInput
	}

	peer, err := s.userRepo.GetByID(ctx, peerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPeerNotFound
		}
		return nil, err
	}
	if peer.Role != role.Counterpart() {
		return nil, ErrInvalidPeer
	}
	return peer, nil
}
