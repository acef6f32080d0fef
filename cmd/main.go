package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/handler"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/jobs"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/middleware"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/oauth"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/oauthstate"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/registry"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/vault"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/webhook"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/config"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/database"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/jwtutil"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/logger"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting POS service...", zap.String("environment", cfg.Server.Env))

	// Initialize database (now includes migrations automatically)
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	jwtutil.SetSigningKey(cfg.JWT.SigningKey)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	st := store.NewGorm(database.GetDB())
	credVault := vault.New(cfg.App.SecretKey, st)
	states := oauthstate.NewCodec(cfg.App.SecretKey)
	lifecycle := oauth.New(cfg.Square, st, credVault, states, log)
	manager := registry.NewManager(cfg, st, credVault, lifecycle, log)
	analytics := registry.NewAnalytics(st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background sync jobs ride on Redis when configured, an in-process
	// channel otherwise.
	var queue jobs.Queue
	if cfg.Queue.RedisURL != "" {
		rq, err := jobs.NewRedisQueue(ctx, cfg.Queue.RedisURL)
		if err != nil {
			log.Fatal("Failed to connect to Redis queue", zap.Error(err))
		}
		queue = rq
		log.Info("Using Redis job queue")
	} else {
		queue = jobs.NewMemoryQueue(256)
		log.Info("Using in-memory job queue")
	}

	pool := jobs.NewPool(queue, manager, cfg.Queue.WorkerCount, log)
	pool.Start(ctx)

	ingestor := webhook.NewIngestor(cfg.Square, st, queue, log)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler.RegisterRoutes(e, &handler.Handlers{
		OAuth:       handler.NewOAuthHandler(lifecycle, st, cfg.App.FrontendURL),
		Webhook:     handler.NewWebhookHandler(ingestor),
		Sync:        handler.NewSyncHandler(manager, st),
		Analytics:   handler.NewAnalyticsHandler(analytics),
		AgentAPIKey: cfg.App.AgentAPIKey,
	})

	// Start server
	go func() {
		port := cfg.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := queue.Close(); err != nil {
		log.Error("Queue close failed", zap.Error(err))
	}
	pool.Wait()
	log.Info("Stopped")
}
