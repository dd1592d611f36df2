/**
 * @description
 * This is the main entry point for the ClawBack backend.
 * It initializes and wires together all the components of the application:
 * configuration, database connection, credit catalog, repository, upgrade
 * service, reminder sweeper, optional Redis/RabbitMQ clients, the in-process
 * cron, and the HTTP router. Finally, it starts the HTTP server.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/clawback/clawback-service/internal/api"
	"github.com/clawback/clawback-service/internal/app"
	"github.com/clawback/clawback-service/internal/catalog"
	"github.com/clawback/clawback-service/internal/config"
	"github.com/clawback/clawback-service/internal/store"
	"github.com/clawback/clawback-service/pkg/rabbitmq"
	"github.com/clawback/clawback-service/pkg/stripeclient"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env for local development; in deployment everything comes from
	// real environment variables.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish connection to the PostgreSQL database with connection pool configuration
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = 50
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Use the simple protocol so the pool works behind PgBouncer transaction
	// pooling (Supabase) without prepared statement cache errors.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// Load the embedded credit catalog.
	cat, err := catalog.Load()
	if err != nil {
		logger.Error("failed to load credit catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("credit catalog loaded", "version", cat.Version, "cards", len(cat.Cards()))

	// Optional event producer for delivery workers.
	var producer app.EventPublisher
	if cfg.AMQPURL != "" {
		p, err := rabbitmq.NewProducer(cfg.AMQPURL, "clawback_events")
		if err != nil {
			logger.Error("unable to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		producer = p
		logger.Info("event producer connected")
	} else {
		logger.Info("AMQP_URL not set, running without event producer")
	}

	// Optional Redis-backed checkout rate limiter.
	var limiter api.RateLimiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("unable to parse redis URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		limiter = app.NewRedisCheckoutRateLimiter(redisClient, "clawback:rate_limit")
		logger.Info("checkout rate limiter enabled")
	}

	// Initialize application layers
	repository := store.NewRepository(dbpool)
	stripe := stripeclient.NewClient(cfg.StripeSecretKey)
	service := app.NewService(repository, stripe, producer, app.CheckoutConfig{
		PriceID:    cfg.StripePriceID,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	}, logger)
	sweeper := app.NewSweeper(repository, cat, producer, logger)

	handler := api.NewHandler(service, sweeper, limiter, cfg.CheckoutRateLimit, cfg.StripeWebhookSecret, cfg.CronSecret, logger)
	router := api.NewRouter(handler, api.AuthConfig{
		JWKSURL:          cfg.ClerkJWKSURL,
		ExpectedIssuer:   cfg.ClerkIssuer,
		ExpectedAudience: cfg.ClerkAudience,
	})

	// Optionally run the sweep from an in-process cron.
	var scheduler *app.Scheduler
	if cfg.EnableReminderCron {
		scheduler = app.NewScheduler(sweeper, cfg.ReminderJobSchedule, logger)
		scheduler.Start()
		logger.Info("reminder cron started", "schedule", cfg.ReminderJobSchedule)
	}

	// Configure and start the HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for an OS signal
	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	if scheduler != nil {
		stopCtx := scheduler.Stop()
		<-stopCtx.Done() // Wait for any in-flight sweep to finish
		logger.Info("reminder cron stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
