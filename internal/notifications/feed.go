package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/apiclient"
	"github.com/saeid-a/CoachAppRealtime/internal/metrics"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

const DefaultPollInterval = 30 * time.Second

type API interface {
	ListNotifications(ctx context.Context) ([]models.RawNotification, error)
	DeleteNotification(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Feed keeps the last fetched raw notification list. Local state changes only
// after the backend confirmed the operation.
type Feed struct {
	api API
	log zerolog.Logger

	mu  sync.RWMutex
	raw []models.RawNotification
}

func NewFeed(api API, log zerolog.Logger) *Feed {
	return &Feed{
		api: api,
		log: log.With().Str("component", "notification_feed").Logger(),
	}
}

// Fetch replaces the local list with the backend's. On failure the last good
// list stays in place.
func (f *Feed) Fetch(ctx context.Context) ([]models.RawNotification, error) {
	raw, err := f.api.ListNotifications(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("notifications unavailable")
		return f.Raw(), err
	}

	f.mu.Lock()
	f.raw = append([]models.RawNotification(nil), raw...)
	f.mu.Unlock()
	return f.Raw(), nil
}

// Delete removes one notification. Deleting an id that is not in the list is a
// no-op, and a 404 from the backend counts as already deleted.
func (f *Feed) Delete(ctx context.Context, id string) error {
	if !f.contains(id) {
		return nil
	}

	if err := f.api.DeleteNotification(ctx, id); err != nil && !errors.Is(err, apiclient.ErrNotFound) {
		f.log.Warn().Err(err).Str("notification_id", id).Msg("delete notification failed")
		return err
	}

	f.mu.Lock()
	kept := f.raw[:0:0]
	for _, n := range f.raw {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	f.raw = kept
	f.mu.Unlock()
	return nil
}

// MarkAllRead clears the whole local list once the backend accepted the call.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	if err := f.api.MarkAllNotificationsRead(ctx); err != nil {
		f.log.Warn().Err(err).Msg("mark all notifications read failed")
		return err
	}

	f.mu.Lock()
	f.raw = nil
	f.mu.Unlock()
	return nil
}

func (f *Feed) Raw() []models.RawNotification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]models.RawNotification{}, f.raw...)
}

func (f *Feed) Display(page PageContext) []models.DisplayNotification {
	display := Aggregate(f.Raw(), page)
	metrics.NotificationsDisplayed.Set(float64(len(display)))
	return display
}

func (f *Feed) UnreadCount(page PageContext) int {
	return UnreadCount(f.Display(page))
}

// Poll fetches every interval until ctx is done and hands each successful
// result to onUpdate. Failed fetches are logged and skipped. A non-positive
// interval means DefaultPollInterval.
func (f *Feed) Poll(ctx context.Context, interval time.Duration, onUpdate func([]models.RawNotification)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			raw, err := f.Fetch(ctx)
			if err != nil {
				continue
			}
			if onUpdate != nil {
				onUpdate(raw)
			}
		}
	}
}

func (f *Feed) contains(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, n := range f.raw {
		if n.ID == id {
			return true
		}
	}
	return false
}
