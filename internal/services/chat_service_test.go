package services

import (
	"context"
	"errors"
	"testing"

	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/repository"
)

func newChatFixture(t *testing.T) (*ChatService, *repository.NotificationRepository) {
	t.Helper()
	users := repository.NewUserRepository()
	for _, user := range []models.User{
		{ID: "c1", Name: "Reza", Role: models.RoleCoach},
		{ID: "m1", Name: "Ali", Role: models.RoleMember},
		{ID: "m2", Name: "Sara", Role: models.RoleMember},
	} {
		user := user
		if err := users.CreateUser(context.Background(), &user); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	notifications := repository.NewNotificationRepository()
	return NewChatService(users, repository.NewMessageRepository(), notifications), notifications
}

func TestListPeersReturnsCounterpartRoleOnly(t *testing.T) {
	service, _ := newChatFixture(t)

	peers, err := service.ListPeers(context.Background(), models.RoleCoach, models.RoleMember)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(peers) != 2 || peers[0].ID != "m1" || peers[1].ID != "m2" {
		t.Fatalf("unexpected peers %+v", peers)
	}

	if _, err := service.ListPeers(context.Background(), models.RoleMember, models.RoleMember); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSendMessageStoresAndNotifiesReceiver(t *testing.T) {
	service, notifications := newChatFixture(t)
	ctx := context.Background()

	delivery, err := service.SendMessage(ctx, "m1", models.RoleMember, "c1", "  salam coach ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if delivery.RecipientID != "c1" {
		t.Fatalf("expected recipient c1, got %s", delivery.RecipientID)
	}
	if delivery.Message.Content != "salam coach" || delivery.Message.SenderRole != models.RoleMember {
		t.Fatalf("unexpected message %+v", delivery.Message)
	}

	list, err := notifications.ListForUser(ctx, "c1")
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}
	if list[0].Type != models.NotificationChat || list[0].RelatedID != "m1" || list[0].SenderName != "Ali" {
		t.Fatalf("unexpected notification %+v", list[0])
	}

	history, err := service.History(ctx, "c1", models.RoleCoach, "m1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != delivery.Message.ID {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestSendMessageRejectsSameRoleAndBadInput(t *testing.T) {
	service, _ := newChatFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		actorID  string
		role     models.Role
		receiver string
		content  string
		want     error
	}{
		{name: "member to member", actorID: "m1", role: models.RoleMember, receiver: "m2", content: "hi", want: ErrInvalidPeer},
		{name: "unknown receiver", actorID: "c1", role: models.RoleCoach, receiver: "x9", content: "hi", want: ErrPeerNotFound},
		{name: "blank content", actorID: "c1", role: models.RoleCoach, receiver: "m1", content: "   ", want: ErrInvalidInput},
		{name: "self", actorID: "c1", role: models.RoleCoach, receiver: "c1", content: "hi", want: ErrInvalidInput},
		{name: "role does not match account", actorID: "m1", role: models.RoleCoach, receiver: "m2", content: "hi", want: ErrForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.SendMessage(ctx, tc.actorID, tc.role, tc.receiver, tc.content)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNotificationServiceDeleteAndMarkAll(t *testing.T) {
	repo := repository.NewNotificationRepository()
	service := NewNotificationService(repo)
	ctx := context.Background()

	first := &models.RawNotification{Type: models.NotificationWorkoutAssigned, Message: "new plan"}
	second := &models.RawNotification{Type: models.NotificationChat, Message: "hi"}
	_ = repo.Create(ctx, "m1", first)
	_ = repo.Create(ctx, "m1", second)

	if err := service.Delete(ctx, "m1", first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := service.Delete(ctx, "m1", first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	cleared, err := service.MarkAllRead(ctx, "m1")
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared, got %d", cleared)
	}

	list, _ := service.List(ctx, "m1")
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}
