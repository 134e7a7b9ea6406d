package app

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barqpix-backend/internal/blob"
	"barqpix-backend/internal/db"
	"barqpix-backend/internal/handlers"
	"barqpix-backend/internal/models"
	"barqpix-backend/internal/services"
	"barqpix-backend/internal/store"
	"barqpix-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func Run() {
	// Load Env
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}
	utils.InitLogger()

	// Init store
	var st store.Store
	if utils.GetEnv("STORE_DRIVER", "postgres") == "memory" {
		log.Println("Using in-memory store")
		st = store.NewMemory()
	} else {
		connString := utils.GetEnv("DATABASE_URL", "")
		if connString == "" {
			// Fallback to individual vars
			connString = "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
				utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
				utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
				utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
				utils.GetEnv("POSTGRES_DB", "barqpix") + "?sslmode=disable"
		}

		if err := db.InitDB(connString); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.CloseDB()

		if err := db.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		st = store.NewPostgres(db.Pool)
	}

	// Blob storage, served under /uploads
	uploadDir := utils.GetEnv("UPLOAD_DIR", "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		log.Printf("Warning: failed to create upload dir: %v", err)
	}
	blobs := blob.NewFileSystemStore(uploadDir)

	baseURL := utils.GetEnv("BASE_URL", "http://localhost:"+utils.GetEnv("PORT", "3001"))

	// Broadcast registry + services
	registry := handlers.NewRegistry()
	userService := services.NewUserService(st)
	eventService := services.NewEventService(st, blobs)
	tokenService := services.NewTokenService(st, blobs, baseURL)
	photoService := services.NewPhotoService(st, blobs, registry, baseURL)

	// Expiry sweeper, stopped on shutdown
	sweeper := services.NewSweeper(st, blobs,
		utils.GetEnvDuration("SWEEP_INTERVAL", 30*time.Minute),
		utils.GetEnvDuration("PHOTO_RETENTION", 720*time.Hour))
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeper.Start(sweepCtx)

	// Fiber App
	app := fiber.New(fiber.Config{
		BodyLimit: utils.GetEnvInt("MAX_UPLOAD_MB", 25) * 1024 * 1024,
	})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Static("/uploads", uploadDir)

	// Routes
	api := app.Group("/api")

	// Public Routes
	api.Post("/register", func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		user, err := userService.Register(c.Context(), req)
		if err != nil {
			if errors.Is(err, services.ErrUserExists) {
				return c.Status(400).JSON(fiber.Map{"error": "email already registered"})
			}
			if errors.Is(err, services.ErrValidation) {
				return c.Status(400).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(user)
	})

	api.Post("/login", func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		res, err := userService.Login(c.Context(), req)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(res)
	})

	// Refresh token endpoint
	api.Post("/refresh", func(c *fiber.Ctx) error {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if body.RefreshToken == "" {
			return c.Status(400).JSON(fiber.Map{"error": "refresh_token required"})
		}

		claims, err := services.ValidateRefreshToken(body.RefreshToken)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid refresh token"})
		}

		userID, ok := claims["user_id"].(string)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token claims"})
		}
		displayName, _ := claims["display_name"].(string)

		access, err := services.GenerateJWT(userID, displayName)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to generate access token"})
		}
		refresh, err := services.GenerateRefreshToken(userID, displayName)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to generate refresh token"})
		}

		return c.JSON(fiber.Map{
			"access_token":  access,
			"refresh_token": refresh,
		})
	})

	// Public QR + photo routes (guests act through scanned links)
	api.Post("/qr/quick/guest", handlers.CreateQuickTokenHandler(tokenService, false))
	api.Get("/qr/:token", handlers.ResolveTokenHandler(tokenService))
	api.Post("/qr/:token/scan", handlers.ScanHandler(tokenService))
	api.Post("/photos/quick/:quickId", handlers.UploadQuickPhotosHandler(photoService))
	api.Get("/photos/quick/:quickId", handlers.ListQuickPhotosHandler(photoService))
	api.Post("/photos/event/:eventId", handlers.UploadEventPhotosHandler(photoService))
	api.Get("/photos/event/:eventId", handlers.ListEventPhotosHandler(photoService))
	api.Get("/events/:eventId", handlers.GetEventHandler(eventService))

	// Protected Routes
	protected := api.Group("/")
	protected.Use(handlers.AuthMiddleware)

	protected.Get("/profile", func(c *fiber.Ctx) error {
		user, err := userService.GetProfile(c.Context(), c.Locals("user_id").(string))
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		return c.JSON(user)
	})

	protected.Post("/events", handlers.CreateEventHandler(eventService))
	protected.Get("/events", handlers.ListEventsHandler(eventService))
	protected.Put("/events/:eventId", handlers.UpdateEventHandler(eventService))
	protected.Delete("/events/:eventId", handlers.DeleteEventHandler(eventService))

	protected.Post("/qr/event", handlers.CreateEventTokenHandler(tokenService))
	protected.Post("/qr/quick", handlers.CreateQuickTokenHandler(tokenService, true))
	protected.Post("/qr/cleanup/expired", handlers.CleanupHandler(sweeper))
	protected.Delete("/qr/:token", handlers.DeleteTokenHandler(tokenService))

	protected.Delete("/photos/:photoId", handlers.DeletePhotoHandler(photoService))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// WebSocket Route: viewers subscribe to a gallery's live updates
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(registry))

	// Start Server
	port := utils.GetEnv("PORT", "3001")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Println("Gracefully shutting down...")
	_ = app.Shutdown()
	stopSweeper()
	sweeper.Wait()
	log.Println("Server shutdown complete")
}
