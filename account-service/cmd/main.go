/**
 * @description
 * Entry point for the account-service. It wires the ledger engine, the customer
 * projection synchronizer and the HTTP API, then runs until SIGINT/SIGTERM.
 *
 * Key features:
 * - Loads configuration from the environment (and an optional .env file).
 * - Opens the PostgreSQL pool and ensures the schema, or runs in memory.
 * - Consumes customer-changed events from RabbitMQ with a bounded worker pool.
 * - Optionally rate limits movement creation through Redis or in memory.
 * - Shuts the server and the consumer down gracefully.
 *
 * @dependencies
 * - pgxpool for the database, godotenv for local config, amqp091 via pkg/rabbitmq,
 *   go-redis for the movement rate limiter.
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/api"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/app"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/config"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/store"
	"github.com/Lgsalgado/banking-system-backend/pkg/logging"
	"github.com/Lgsalgado/banking-system-backend/pkg/middleware"
	"github.com/Lgsalgado/banking-system-backend/pkg/rabbitmq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const consumerRetryDelay = 5 * time.Second

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := logging.New("account-service", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	ledger := app.NewLedgerEngine(repo, app.WithLockTimeout(cfg.AccountLockTimeout), app.WithLedgerLogger(logger))
	synchronizer := app.NewProjectionSynchronizer(repo, nil, logger)

	var consumers sync.WaitGroup
	if cfg.RabbitMQURL != "" {
		binding := rabbitmq.Binding{
			Exchange:   cfg.CustomerExchange,
			Queue:      cfg.CustomerQueue,
			RoutingKey: cfg.CustomerRoutingKey,
			Prefetch:   cfg.ConsumerPrefetch,
			Workers:    cfg.ConsumerWorkers,
		}
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			runConsumer(ctx, cfg.RabbitMQURL, binding, synchronizer.HandleDelivery, logger)
		}()
	} else {
		logger.Warn("RABBITMQ_URL not set, customer projections will not be synchronized")
	}

	var limiter middleware.Limiter
	switch {
	case cfg.MovementRateLimit <= 0:
	case cfg.RedisURL != "":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		limiter = middleware.NewRedisRateLimiter(client, cfg.RateLimitPrefix, cfg.MovementRateLimit, cfg.MovementRateWindow)
		logger.Info("movement rate limiting enabled", "backend", "redis", "limit", cfg.MovementRateLimit, "window", cfg.MovementRateWindow)
	default:
		memoryLimiter := middleware.NewMemoryRateLimiter(cfg.MovementRateLimit, cfg.MovementRateWindow)
		defer memoryLimiter.Stop()
		limiter = memoryLimiter
		logger.Info("movement rate limiting enabled", "backend", "memory", "limit", cfg.MovementRateLimit, "window", cfg.MovementRateWindow)
	}

	router := api.NewRouter(api.Dependencies{
		Accounts:       app.NewAccountService(repo),
		Ledger:         ledger,
		Statements:     app.NewStatementService(repo, repo, repo),
		Projections:    repo,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
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
	logger.Info("shutting down account-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	consumers.Wait()
	logger.Info("account-service stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Repository, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryRepository(cfg.AccountLockTimeout), func() {}, nil
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		dbConfig.MaxConns = cfg.DBMaxConns
	}
	dbConfig.MaxConnLifetime = 30 * time.Minute
	dbConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind poolers
	dbConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("database connection established", "max_conns", dbConfig.MaxConns)

	return store.NewPostgresRepository(pool, cfg.AccountLockTimeout), pool.Close, nil
}

// runConsumer keeps a consumer attached to the broker until ctx is cancelled,
// reconnecting after connection loss.
func runConsumer(ctx context.Context, url string, binding rabbitmq.Binding, handler rabbitmq.Handler, logger *slog.Logger) {
	for {
		consumer, err := rabbitmq.NewConsumer(url, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
		} else {
			err = consumer.Consume(ctx, binding, handler)
			consumer.Close()
			if err == nil {
				return
			}
			logger.Error("consumer stopped", "queue", binding.Queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(consumerRetryDelay):
		}
	}
}
