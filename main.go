package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"game-session-engine/handlers"
	"game-session-engine/middleware"
	"game-session-engine/models"
	"game-session-engine/services"
	"game-session-engine/utils"
	"game-session-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Session{},
		&models.Card{},
		&models.Invite{},
		&models.WinningPattern{},
		&models.GameEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	lockTimeout := 5 * time.Second
	if ms := os.Getenv("LOCK_TIMEOUT_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n > 0 {
			lockTimeout = time.Duration(n) * time.Millisecond
		}
	}

	catalog := services.NewPatternCatalog()
	if err := catalog.SeedPatterns(db); err != nil {
		log.Fatal("failed to seed winning patterns:", err)
	}

	locks := services.NewLockRegistry(lockTimeout)
	eventService := services.NewEventService(db)
	cardService := services.NewCardService(db, catalog)
	claimService := services.NewClaimService(db, locks)
	winService := services.NewWinService(catalog)
	admissionService := services.NewAdmissionService(db, locks, eventService)

	assets := utils.NewR2AssetSource()

	gameService := services.NewGameService(
		db, catalog, cardService, claimService, winService,
		admissionService, locks, eventService, assets,
	)

	// --- CONFIGURE Auth Service for the SSE event stream ---
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("SESSION_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("SESSION_SERVICE_TOKEN environment variable not set")
	}
	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)
	// --- END CONFIG ---

	sweepClient := workers.NewSessionSweepClient(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollSessions(ctx, sweepClient, 30*time.Second)

	gameService.StartAutoStartScheduler()

	// ✅ Setup routes — enforced Gateway auth everywhere
	handlers.SetupSessionRoutes(app, gameService, admissionService, eventService, authClient)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Session sweep running (every 30s)")
	log.Println("✅ Auto-start scheduler running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
