package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/saeid-a/CoachAppRealtime/internal/config"
	"github.com/saeid-a/CoachAppRealtime/internal/logger"
	"github.com/saeid-a/CoachAppRealtime/internal/middleware"
	"github.com/saeid-a/CoachAppRealtime/internal/routes"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appLog := logger.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. In-memory state
	repos := routes.NewRepositories()
	if cfg.SeedDemoData {
		if err := seedDemo(ctx, repos, cfg, appLog); err != nil {
			appLog.Fatal().Err(err).Msg("seed demo data")
		}
	}

	// 3. Setup Fiber
	app := fiber.New(fiber.Config{DisableStartupMessage: !cfg.IsDevelopment()})

	// Middleware
	app.Use(cors.New())
	app.Use(middleware.RequestLogger(appLog))
	app.Use(recover.New())

	// Routes
	if err := routes.RegisterRoutes(ctx, app, cfg, repos, appLog); err != nil {
		appLog.Fatal().Err(err).Msg("register routes")
	}

	go func() {
		<-ctx.Done()
		appLog.Info().Msg("shutting down")
		if err := app.Shutdown(); err != nil {
			appLog.Error().Err(err).Msg("shutdown")
		}
	}()

	// 4. Start Server
	appLog.Info().Str("port", cfg.Port).Msg("sandbox backend starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		appLog.Fatal().Err(err).Msg("server failed to start")
	}
}
