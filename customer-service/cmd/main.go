/**
 * @description
 * This is the main entry point for the customer-service. It serves customer
 * CRUD over HTTP and announces every create or update on the customer events
 * exchange.
 *
 * Key features:
 * - Loads configuration from environment variables.
 * - Opens PostgreSQL through database/sql with the pgx stdlib driver.
 * - Publishes with confirms; falls back to a failing publisher when the broker
 *   is unreachable so writes are kept and flagged for resync.
 * - Runs the cron resync job and shuts everything down gracefully.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/stdlib: database/sql driver.
 * - github.com/joho/godotenv: To load .env files for local development.
 * - github.com/robfig/cron/v3 via internal/app: resync scheduling.
 */
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/api"
	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/app"
	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/config"
	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/store"
	"github.com/Lgsalgado/banking-system-backend/pkg/logging"
	"github.com/Lgsalgado/banking-system-backend/pkg/rabbitmq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := logging.New("customer-service", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connection established")

	var publisher rabbitmq.Publisher
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ unavailable, customer changes will stay pending", "error", err)
		publisher = &rabbitmq.FallbackPublisher{Logger: logger}
	} else {
		publisher = producer
	}
	defer publisher.Close()

	service := app.NewCustomerService(store.NewPostgresCustomerRepository(db), publisher,
		app.WithRouting(cfg.CustomerExchange, cfg.CustomerRoutingKey),
		app.WithPublishTimeout(cfg.PublishTimeout),
		app.WithLogger(logger),
	)

	resync := app.NewResyncJob(service, cfg.ResyncSchedule, cfg.ResyncBatchSize, logger)
	if err := resync.Start(); err != nil {
		logger.Error("failed to start resync job", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           api.NewRouter(service, cfg.CORSAllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down customer-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	select {
	case <-resync.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("resync job did not stop in time")
	}
	logger.Info("customer-service stopped")
}

func openDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	connConfig, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	// Disable prepared statement caching to prevent conflicts
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	db := stdlib.OpenDB(*connConfig)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
