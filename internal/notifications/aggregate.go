package notifications

import (
	"fmt"
	"strings"

	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

const (
	// UnknownSender replaces a missing sender name in grouping keys and text.
	UnknownSender = "ناشناس"

	coachLabel  = "مربی"
	memberLabel = "کاربر"
)

// PageContext identifies the view the notifications are rendered on.
type PageContext struct {
	Path string
}

// IsChatPage reports whether path belongs to a chat view.
func IsChatPage(path string) bool {
	return strings.Contains(path, "/chat")
}

type chatGroup struct {
	first models.RawNotification
	count int
}

// Aggregate folds chat notifications into one entry per (relatedId, sender)
// and returns the other notifications followed by those entries. On a chat page
// the chat entries are left out. raw is never modified.
func Aggregate(raw []models.RawNotification, page PageContext) []models.DisplayNotification {
	display := make([]models.DisplayNotification, 0, len(raw))

	var order []string
	groups := make(map[string]*chatGroup)
	for _, n := range raw {
		if n.Type != models.NotificationChat {
			display = append(display, passThrough(n))
			continue
		}
		key := n.RelatedID + "-" + senderName(n)
		group, ok := groups[key]
		if !ok {
			group = &chatGroup{first: n}
			groups[key] = group
			order = append(order, key)
		}
		group.count++
	}

	if IsChatPage(page.Path) {
		return display
	}

	for _, key := range order {
		group := groups[key]
		name := senderName(group.first)
		display = append(display, models.DisplayNotification{
			ID:         "aggregated-" + group.first.ID,
			Type:       models.NotificationChatAggregated,
			Count:      group.count,
			Message:    chatSummary(group.count, roleLabel(group.first.SenderRole), name),
			RelatedID:  group.first.RelatedID,
			CreatedAt:  group.first.CreatedAt,
			SenderName: name,
			SenderRole: group.first.SenderRole,
		})
	}
	return display
}

// UnreadCount is the badge number for a display list.
func UnreadCount(display []models.DisplayNotification) int {
	return len(display)
}

func passThrough(n models.RawNotification) models.DisplayNotification {
	return models.DisplayNotification{
		ID:         n.ID,
		Type:       n.Type,
		Message:    n.Message,
		RelatedID:  n.RelatedID,
		CreatedAt:  n.CreatedAt,
		SenderName: n.SenderName,
		SenderRole: n.SenderRole,
	}
}

func senderName(n models.RawNotification) string {
	if strings.TrimSpace(n.SenderName) == "" {
		return UnknownSender
	}
	return n.SenderName
}

func roleLabel(role models.Role) string {
	if role == models.RoleCoach {
		return coachLabel
	}
	return memberLabel
}

func chatSummary(count int, label, name string) string {
	if count == 1 {
		return fmt.Sprintf("شما یک پیام از %s %s دریافت کردید", label, name)
	}
	return fmt.Sprintf("شما %d پیام از %s %s دریافت کردید", count, label, name)
}
