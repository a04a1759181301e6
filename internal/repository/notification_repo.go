package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

// NotificationRepository stores raw notifications per recipient, oldest first.
type NotificationRepository struct {
	mu     sync.RWMutex
	byUser map[string][]models.RawNotification
	now    func() time.Time
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		byUser: make(map[string][]models.RawNotification),
		now:    time.Now,
	}
}

func (r *NotificationRepository) Create(_ context.Context, userID string, notification *models.RawNotification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = append(r.byUser[userID], *notification)
	return nil
}

func (r *NotificationRepository) ListForUser(_ context.Context, userID string) ([]models.RawNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.RawNotification{}, r.byUser[userID]...), nil
}

func (r *NotificationRepository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byUser[userID]
	for i, notification := range list {
		if notification.ID == id {
			r.byUser[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *NotificationRepository) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.byUser[userID])
	delete(r.byUser, userID)
	return n, nil
}
