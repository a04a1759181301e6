package services

import (
	"context"
	"errors"
	"strings"

	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/repository"
)

type notificationStore interface {
	ListForUser(ctx context.Context, userID string) ([]models.RawNotification, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

type NotificationService struct {
	repo notificationStore
}

func NewNotificationService(repo notificationStore) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) List(ctx context.Context, userID string) ([]models.RawNotification, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	return s.repo.ListForUser(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrForbidden
	}
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// MarkAllRead drops every notification of the user and reports how many there were.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrForbidden
	}
	return s.repo.DeleteAllForUser(ctx, userID)
}
