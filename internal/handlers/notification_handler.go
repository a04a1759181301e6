package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/services"
)

type notificationApplicationService interface {
	List(ctx context.Context, userID string) ([]models.RawNotification, error)
	Delete(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type NotificationHandler struct {
	service notificationApplicationService
}

func NewNotificationHandler(service notificationApplicationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	notifications, err := h.service.List(c.Context(), userID)
	if err != nil {
		return mapNotificationError(c, err)
	}

	return c.JSON(models.NotificationsResponse{Notifications: notifications})
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	userID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	if err := h.service.Delete(c.Context(), userID, c.Params("id")); err != nil {
		return mapNotificationError(c, err)
	}

	return c.JSON(fiber.Map{"deleted": true})
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	cleared, err := h.service.MarkAllRead(c.Context(), userID)
	if err != nil {
		return mapNotificationError(c, err)
	}

	return c.JSON(fiber.Map{"cleared": cleared})
}

func mapNotificationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process notification request"})
	}
}
