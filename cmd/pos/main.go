package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/store/memory"
	pgstore "github.com/odyssey-erp/odyssey-pos/internal/store/postgres"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	deps := app.Dependencies{
		Logger:  logger,
		Config:  cfg,
		Metrics: observability.NewMetrics(),
	}

	switch cfg.StoreDriver {
	case app.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		deps.Stores = memory.New()
		deps.Audit = shared.NewMemoryAuditLogger()
	default:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.DBMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				logger.Error("migrate schema", slog.Any("error", err))
				os.Exit(1)
			}
			logger.Info("schema migrated")
		}
		deps.Stores = pgstore.New(pool, logger)
		deps.Audit = shared.NewAuditLogger(pool)
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		// Locks and the shared rate-limit counter degrade to in-process behaviour.
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		defer closeRedis(logger, redisClient)
		deps.Locker = cache.NewLocker(redisClient, logger)
		deps.RateLimitCounter = cache.NewRateLimitCounter(redisClient, "pos:ratelimit")

		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		if cfg.NotifyEnabled {
			jobClient, err := jobs.NewClient(redisOpts)
			if err != nil {
				logger.Error("init job client", slog.Any("error", err))
				os.Exit(1)
			}
			defer func() {
				if err := jobClient.Close(); err != nil {
					logger.Warn("job client close", slog.Any("error", err))
				}
			}()
			deps.Notifier = jobClient
		}

		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		deps.JobHandler = jobs.NewHandler(inspector, logger)
	}

	container := app.NewContainer(deps)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      container.Router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func closeRedis(logger *slog.Logger, client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
}
