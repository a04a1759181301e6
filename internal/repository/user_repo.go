package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

// UserRepository keeps users in insertion order.
type UserRepository struct {
	mu    sync.RWMutex
	byID  map[string]models.User
	order []string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byID: make(map[string]models.User)}
}

// CreateUser assigns an id when user.ID is empty.
func (r *UserRepository) CreateUser(_ context.Context, user *models.User) error {
	if strings.TrimSpace(user.ID) == "" {
		user.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[user.ID]; !exists {
		r.order = append(r.order, user.ID)
	}
	r.byID[user.ID] = *user
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *UserRepository) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]models.User, 0, len(r.order))
	for _, id := range r.order {
		if user := r.byID[id]; user.Role == role {
			users = append(users, user)
		}
	}
	return users, nil
}
