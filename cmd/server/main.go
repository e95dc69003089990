package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/replenishment/internal/app"
	"github.com/odyssey-erp/replenishment/internal/catalog"
	"github.com/odyssey-erp/replenishment/internal/inventory"
	"github.com/odyssey-erp/replenishment/internal/observability"
	"github.com/odyssey-erp/replenishment/internal/platform/cache"
	"github.com/odyssey-erp/replenishment/internal/platform/db"
	"github.com/odyssey-erp/replenishment/internal/purchasing"
	"github.com/odyssey-erp/replenishment/internal/receiving"
	"github.com/odyssey-erp/replenishment/internal/replenishment"
	"github.com/odyssey-erp/replenishment/jobs"
)

func main() {
	if app.SkipStartup("server") {
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

	pool, err := db.New(ctx, cfg.PGDSN, "server")
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.Redis()); err != nil {
		logger.Warn("redis unavailable, replenishment cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	engine := app.NewEngine(cfg, logger, pool, redisClient, metrics)

	inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Health: func(r *http.Request) error {
			if err := pool.Ping(r.Context()); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			return nil
		},
		CatalogHandler:       catalog.NewHandler(logger, engine.Catalog),
		InventoryHandler:     inventory.NewHandler(logger, engine.Inventory),
		ReplenishmentHandler: replenishment.NewHandler(logger, engine.Replenishment),
		PurchasingHandler:    purchasing.NewHandler(logger, engine.Purchasing),
		ReceivingHandler:     receiving.NewHandler(logger, engine.Receiving),
		JobHandler:           jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
