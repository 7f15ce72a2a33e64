package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/saeid-a/ToolConnectBack/internal/config"
	"github.com/saeid-a/ToolConnectBack/internal/database"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
	"github.com/saeid-a/ToolConnectBack/internal/routes"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	observability.Configure(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database and Redis
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	db, err := database.Connect(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			observability.Logger.Warn("continuing without realtime delivery", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// 3. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:   "ToolConnect API",
		BodyLimit: int(cfg.MaxAttachmentBytes) + 1024*1024,
	})
	routes.SetupMiddleware(app, cfg)
	if err := routes.RegisterRoutes(ctx, app, cfg, db, rdb); err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}

	go func() {
		<-ctx.Done()
		observability.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			observability.Logger.Error("server shutdown error", "error", err)
		}
	}()

	// 4. Start Server
	observability.Logger.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
