package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/config"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/database"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/logging"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/routes"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/services"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout) until the config is known
	logging.Setup("info")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Backends
	conns, err := openBackends(ctx, cfg)
	if err != nil {
		slog.Error("backend connection failed", "error", err)
		conns.close(ctx)
		os.Exit(1)
	}
	gw, err := conns.gateway(ctx, cfg)
	if err != nil {
		slog.Error("gateway setup failed", "error", err)
		conns.close(ctx)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch) and log cleanup
	var pgLogHandler *logging.PGHandler
	cleanupDone := make(chan struct{})
	if conns.db != nil {
		pgLogHandler = logging.NewPGHandler(conns.db)
		slog.SetDefault(slog.New(logging.NewMultiHandler(
			logging.NewJSONHandler(os.Stdout, cfg.LogLevel),
			pgLogHandler,
		)))
		logging.StartCleanup(conns.db, cfg.LogRetentionDays, cleanupDone)
	}

	// Rate limiter storage: redis when configured, in-memory otherwise
	opts := routes.DefaultOptions()
	var limiterStorage *database.RedisStorage
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(ctx, cfg)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			conns.close(ctx)
			os.Exit(1)
		}
		limiterStorage = database.NewRedisStorage(client)
		opts.Storage = limiterStorage
	}

	// Services
	hasher := services.NewPasswordHasher(cfg.BcryptCost)
	tokens := services.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	authService := services.NewAuthService(gw, hasher, tokens, cfg.UsersCollection)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	healthHandler := handlers.NewHealthHandler(gw)
	if limiterStorage != nil {
		healthHandler.WithCheck("redis", limiterStorage.Ping)
	}
	docsHandler := handlers.NewDocsHandler()

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimit,
		ErrorHandler: middleware.ErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	// Routes
	routes.Setup(app, opts, tokens, authHandler, healthHandler, docsHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	if pgLogHandler != nil {
		pgLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)

	if limiterStorage != nil {
		if err := limiterStorage.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conns.close(closeCtx)

	slog.Info("server stopped")
}
