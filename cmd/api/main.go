package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/concertforge/ticket-engine/internal/application/engine"
	"github.com/concertforge/ticket-engine/internal/domain/services"
	"github.com/concertforge/ticket-engine/internal/infrastructure/database/postgres"
	"github.com/concertforge/ticket-engine/internal/infrastructure/database/redis"
	"github.com/concertforge/ticket-engine/internal/infrastructure/external/paystack"
	httpServer "github.com/concertforge/ticket-engine/internal/interfaces/http"
	"github.com/concertforge/ticket-engine/pkg/config"
	"github.com/concertforge/ticket-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.Env)

	// Initialize database connection
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	logger.Info("Database connection established successfully")

	// Initialize Redis connection
	redisWrapper, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := redisWrapper.Close(); err != nil {
			logger.Errorf("Failed to close Redis connection: %v", err)
		}
	}()

	logger.Info("Redis connection established successfully")

	// Run database migrations
	database := postgres.NewDatabase(db, &cfg.Database)
	if err := database.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run database migrations: %v", err)
	}

	logger.Info("Database migrations completed successfully")

	// Wire the transaction engine: Store over the connected database, the Paystack
	// gateway over PAYMENT_SECRET_KEY, and the narrow domain services the engine
	// depends on (§2 item 1, §9).
	store := postgres.NewStore(db)
	gateway := paystack.NewGateway(
		cfg.Ticketing.PaymentSecretKey,
		cfg.Ticketing.PaystackBaseURL,
		time.Duration(cfg.Ticketing.GatewayTimeoutMs)*time.Millisecond,
	)
	codec := services.NewTicketTokenCodec([]byte(cfg.Ticketing.QRSecretKey))
	splits := services.NewSplitsCalculator()
	clock := services.SystemClock{}
	ids := services.UUIDSource{}
	audit := engine.NewLoggingAuditEmitter()

	txEngine := engine.NewTransactionEngine(store, gateway, codec, splits, clock, ids, audit, engine.Config{
		OrganizerPercent: int(cfg.Ticketing.OrganizerPercent),
		MaxRetries:       cfg.Ticketing.RetryMaxAttempts,
		RetryBaseMs:      cfg.Ticketing.RetryBaseMs,
		RetryMaxMs:       cfg.Ticketing.RetryMaxMs,
		GatewayTimeout:   time.Duration(cfg.Ticketing.GatewayTimeoutMs) * time.Millisecond,
	})
	gateValidator := engine.NewGateValidator(store, codec, clock, audit)
	webhookProcessor := engine.NewWebhookProcessor(store, gateway, txEngine, audit)

	retryScheduler := engine.NewRetryScheduler(store, txEngine, clock, engine.RetrySchedulerConfig{
		ScanInterval: cfg.Ticketing.RetryScanInterval,
		BatchSize:    cfg.Ticketing.RetryBatchSize,
		Concurrency:  cfg.Ticketing.RetryConcurrency,
	})
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go retryScheduler.Start(schedulerCtx)
	defer func() {
		stopScheduler()
		retryScheduler.Stop()
	}()

	// Create HTTP server with the wired engine components
	server := httpServer.NewServer(cfg, db, redisWrapper, txEngine, gateValidator, webhookProcessor, gateway)

	// Start server in a goroutine
	go func() {
		logger.Infof("Starting server on port %d", cfg.App.Port)
		if err := server.Start(); err != nil {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
