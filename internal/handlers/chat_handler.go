package handlers

import (
	"context"
	"errors"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/services"
	chatws "github.com/saeid-a/CoachAppRealtime/internal/websocket"
	"github.com/saeid-a/CoachAppRealtime/pkg/utils"
)

type chatApplicationService interface {
	ListPeers(ctx context.Context, role models.Role, want models.Role) ([]models.Peer, error)
	History(ctx context.Context, actorID string, role models.Role, peerID string) ([]models.Message, error)
	SendMessage(ctx context.Context, actorID string, role models.Role, receiverID string, content string) (*services.ChatDelivery, error)
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *chatws.Hub
	jwtSecret string
}

func NewChatHandler(service chatApplicationService, hub *chatws.Hub, jwtSecret string) *ChatHandler {
	return &ChatHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// ListMembers serves GET /chat/users for coaches.
func (h *ChatHandler) ListMembers(c *fiber.Ctx) error {
	return h.listPeers(c, models.RoleMember, "users")
}

// ListCoaches serves GET /chat/coaches for members.
func (h *ChatHandler) ListCoaches(c *fiber.Ctx) error {
	return h.listPeers(c, models.RoleCoach, "coaches")
}

func (h *ChatHandler) listPeers(c *fiber.Ctx, want models.Role, key string) error {
	_, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	peers, err := h.service.ListPeers(c.Context(), role, want)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{key: peers})
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	userID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	peerID := strings.TrimSpace(c.Params("peerId"))
	if peerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid peer id"})
	}

	messages, err := h.service.History(c.Context(), userID, role, peerID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(models.HistoryResponse{Messages: messages})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)
	client := chatws.NewClient(h.hub, conn, userID, models.Role(role))

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidPeer):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrPeerNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Peer not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
