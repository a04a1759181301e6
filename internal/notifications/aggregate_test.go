package notifications

import (
	"testing"
	"time"

	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createdAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func chatFrom(id, relatedID, name string, role models.Role) models.RawNotification {
	return models.RawNotification{
		ID:         id,
		Type:       models.NotificationChat,
		Message:    "new message",
		RelatedID:  relatedID,
		CreatedAt:  createdAt,
		SenderName: name,
		SenderRole: role,
	}
}

func TestAggregateGroupsSameSender(t *testing.T) {
	raw := []models.RawNotification{
		chatFrom("n1", "p1", "Ali", models.RoleMember),
		chatFrom("n2", "p1", "Ali", models.RoleMember),
	}

	display := Aggregate(raw, PageContext{Path: "/dashboard"})

	require.Len(t, display, 1)
	assert.Equal(t, "aggregated-n1", display[0].ID)
	assert.Equal(t, models.NotificationChatAggregated, display[0].Type)
	assert.Equal(t, 2, display[0].Count)
	assert.Equal(t, "شما 2 پیام از کاربر Ali دریافت کردید", display[0].Message)
	assert.Equal(t, "p1", display[0].RelatedID)
	assert.Equal(t, createdAt, display[0].CreatedAt)
	assert.Equal(t, 1, UnreadCount(display))
}

func TestAggregateSingularAndCoachLabel(t *testing.T) {
	display := Aggregate([]models.RawNotification{chatFrom("n1", "c1", "Reza", models.RoleCoach)}, PageContext{})

	require.Len(t, display, 1)
	assert.Equal(t, 1, display[0].Count)
	assert.Equal(t, "شما یک پیام از مربی Reza دریافت کردید", display[0].Message)
}

func TestAggregateMissingSenderFallsBack(t *testing.T) {
	raw := []models.RawNotification{
		chatFrom("n1", "p1", "", ""),
		chatFrom("n2", "p1", "  ", models.RoleMember),
	}

	display := Aggregate(raw, PageContext{})

	require.Len(t, display, 1)
	assert.Equal(t, 2, display[0].Count)
	assert.Equal(t, UnknownSender, display[0].SenderName)
	assert.Equal(t, "شما 2 پیام از کاربر ناشناس دریافت کردید", display[0].Message)
}

func TestAggregateKeepsOthersFirstAndGroupOrder(t *testing.T) {
	workout := models.RawNotification{ID: "w1", Type: models.NotificationWorkoutAssigned, Message: "new plan", RelatedID: "prog-1"}
	class := models.RawNotification{ID: "k1", Type: models.NotificationClassRegistration, Message: "registered"}
	raw := []models.RawNotification{
		chatFrom("n1", "p2", "Sara", models.RoleMember),
		workout,
		chatFrom("n2", "p1", "Ali", models.RoleMember),
		chatFrom("n3", "p2", "Sara", models.RoleMember),
		class,
	}

	display := Aggregate(raw, PageContext{Path: "/profile"})

	require.Len(t, display, 4)
	assert.Equal(t, "w1", display[0].ID)
	assert.Equal(t, "new plan", display[0].Message)
	assert.Equal(t, "k1", display[1].ID)
	assert.Equal(t, "aggregated-n1", display[2].ID)
	assert.Equal(t, 2, display[2].Count)
	assert.Equal(t, "aggregated-n2", display[3].ID)
	assert.Equal(t, 1, display[3].Count)
}

func TestAggregateSuppressesChatOnChatPage(t *testing.T) {
	workout := models.RawNotification{ID: "w1", Type: models.NotificationWorkoutAssigned, Message: "new plan"}
	raw := []models.RawNotification{
		chatFrom("n1", "p1", "Ali", models.RoleMember),
		workout,
		chatFrom("n2", "p2", "Sara", models.RoleMember),
	}

	for _, path := range []string{"/chat", "/coach/chat/m1", "/dashboard/chat"} {
		display := Aggregate(raw, PageContext{Path: path})
		require.Len(t, display, 1, path)
		assert.Equal(t, "w1", display[0].ID)
		assert.Equal(t, models.NotificationWorkoutAssigned, display[0].Type)
	}
}

func TestAggregateIsPureAndNeverGrows(t *testing.T) {
	raw := []models.RawNotification{
		chatFrom("n1", "p1", "Ali", models.RoleMember),
		chatFrom("n2", "p1", "Ali", models.RoleMember),
		chatFrom("n3", "p1", "Sara", models.RoleMember),
		{ID: "w1", Type: models.NotificationWorkoutAssigned},
	}
	snapshot := append([]models.RawNotification(nil), raw...)

	first := Aggregate(raw, PageContext{Path: "/"})
	second := Aggregate(raw, PageContext{Path: "/"})

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, raw)
	assert.LessOrEqual(t, len(first), len(raw))
	for _, n := range first {
		assert.NotEqual(t, models.NotificationChat, n.Type)
	}
}

func TestAggregateEmpty(t *testing.T) {
	display := Aggregate(nil, PageContext{})
	assert.NotNil(t, display)
	assert.Empty(t, display)
	assert.Equal(t, 0, UnreadCount(display))
}

func TestIsChatPage(t *testing.T) {
	assert.True(t, IsChatPage("/member/chat"))
	assert.False(t, IsChatPage("/member/classes"))
	assert.False(t, IsChatPage(""))
}
