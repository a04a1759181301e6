package routes

import (
	"context"
	"errors"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/config"
	"github.com/saeid-a/CoachAppRealtime/internal/handlers"
	"github.com/saeid-a/CoachAppRealtime/internal/middleware"
	"github.com/saeid-a/CoachAppRealtime/internal/repository"
	"github.com/saeid-a/CoachAppRealtime/internal/services"
	chatws "github.com/saeid-a/CoachAppRealtime/internal/websocket"
)

// Repositories is the in-memory state behind the sandbox backend.
type Repositories struct {
	Users         *repository.UserRepository
	Messages      *repository.MessageRepository
	Notifications *repository.NotificationRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Users:         repository.NewUserRepository(),
		Messages:      repository.NewMessageRepository(),
		Notifications: repository.NewNotificationRepository(),
	}
}

// RegisterRoutes mounts REST, socket and operational endpoints. The chat hub
// runs until ctx is done.
func RegisterRoutes(ctx context.Context, app *fiber.App, cfg *config.Config, repos *Repositories, log zerolog.Logger) error {
	if cfg == nil || cfg.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}

	chatHub := chatws.NewHub(log, cfg.SendRatePerSecond, cfg.SendBurst)
	go chatHub.Run(ctx)

	chatService := services.NewChatService(repos.Users, repos.Messages, repos.Notifications)
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret)
	notificationService := services.NewNotificationService(repos.Notifications)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	authRequired := middleware.AuthRequired(cfg.JWTSecret)

	chat := app.Group("/chat", authRequired)
	chat.Get("/users", chatHandler.ListMembers)
	chat.Get("/coaches", chatHandler.ListCoaches)
	chat.Get("/:peerId", chatHandler.GetHistory)

	notifications := app.Group("/notifications", authRequired)
	notifications.Get("", notificationHandler.List)
	notifications.Post("/mark-all-read", notificationHandler.MarkAllRead)
	notifications.Delete("/:id", notificationHandler.Delete)

	app.Use("/ws", chatHandler.WebSocketAuth)
	app.Get("/ws", websocket.New(chatHandler.HandleWebSocket))

	return nil
}
