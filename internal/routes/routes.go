package routes

import (
	"context"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/saeid-a/ToolConnectBack/internal/config"
	"github.com/saeid-a/ToolConnectBack/internal/handlers"
	"github.com/saeid-a/ToolConnectBack/internal/middleware"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
	"github.com/saeid-a/ToolConnectBack/internal/realtime"
	"github.com/saeid-a/ToolConnectBack/internal/repository"
	"github.com/saeid-a/ToolConnectBack/internal/services"
	chatws "github.com/saeid-a/ToolConnectBack/internal/websocket"
)

// SetupMiddleware installs the global chain. Order matters: request ids must exist before the
// context and logging middleware read them.
func SetupMiddleware(app *fiber.App, cfg *config.Config) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestContext())

	prom := fiberprometheus.New("toolconnect-api")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())
	if cfg.IsDevelopment() {
		app.Use(logger.New())
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
	}))
}

// RegisterRoutes wires repositories, services and handlers. rdb may be nil, in which case
// messages are stored but not pushed live.
func RegisterRoutes(ctx context.Context, app *fiber.App, cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client) error {
	userRepo := repository.NewUserRepository(db)
	clientProfileRepo := repository.NewClientProfileRepository(db)
	providerProfileRepo := repository.NewProviderProfileRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	var storage services.ObjectStore
	if cfg.StorageConfigured() {
		storage = services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	} else {
		observability.Logger.Warn("object storage is not configured; attachments and avatars are disabled")
	}

	notifier := realtime.NewNotifier(rdb)
	chatHub := chatws.NewHub(cfg.WSMaxConnsPerUser)
	go chatHub.Run()
	if err := notifier.StartInboxSubscriber(ctx, chatHub.DeliverInbox); err != nil {
		return err
	}

	profileService := services.NewProfileService(userRepo, clientProfileRepo, providerProfileRepo)
	directory := services.NewConversationDirectory(conversationRepo)
	messageLog := services.NewMessageLog(messageRepo, storage)
	chatService := services.NewChatService(
		services.NewPgTransactor(db, directory, messageLog),
		directory,
		messageLog,
		services.NewUnreadTracker(messageRepo),
		conversationRepo,
		profileService,
		notifier,
	)

	authHandler := handlers.NewAuthHandler(db, userRepo, cfg.JWTSecret)
	onboardingHandler := handlers.NewOnboardingHandler(profileService)
	profileHandler := handlers.NewProfileHandler(profileService, storage)
	directoryHandler := handlers.NewDirectoryHandler(profileService)
	chatHandler := handlers.NewChatHandler(
		chatService,
		chatHub,
		chatws.NewNotifierFeed(notifier),
		cfg.JWTSecret,
		cfg.MaxAttachmentBytes,
	)

	app.Get("/health", func(c *fiber.Ctx) error {
		pingCtx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "down"})
		}
		return c.JSON(fiber.Map{
			"status":   "ok",
			"realtime": rdb != nil,
			"storage":  storage != nil,
		})
	})

	api := app.Group("/api")

	auth := api.Group("/auth")
	authLimiter := limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests, please try again later."})
		},
	})
	auth.Post("/register", authLimiter, authHandler.Register)
	auth.Post("/login", authLimiter, authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	v1 := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	v1.Get("/onboarding/plan", onboardingHandler.Plan)

	profiles := v1.Group("/profiles")
	profiles.Get("/me", profileHandler.GetOwnProfiles)
	profiles.Post("/client", onboardingHandler.ClientOnboarding)
	profiles.Post("/provider", onboardingHandler.ProviderOnboarding)
	profiles.Put("/client", profileHandler.UpdateClientProfile)
	profiles.Put("/provider", profileHandler.UpdateProviderProfile)
	profiles.Post("/:role/avatar", profileHandler.UploadAvatar)

	v1.Get("/providers", directoryHandler.ListProviders)
	v1.Get("/providers/:id", directoryHandler.GetProvider)
	v1.Get("/clients/:id", directoryHandler.GetClient)

	conversations := v1.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/lookup", chatHandler.LookupConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)

	v1.Post("/messages", chatHandler.SendFirstMessage)
	v1.Get("/unread", chatHandler.Unread)

	return nil
}
