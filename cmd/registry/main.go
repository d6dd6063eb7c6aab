package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subrelay/subscription-relay/internal/api"
	"github.com/subrelay/subscription-relay/internal/auth"
	"github.com/subrelay/subscription-relay/internal/config"
	"github.com/subrelay/subscription-relay/internal/deliver"
	"github.com/subrelay/subscription-relay/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadRegistry()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.EnsureSchema(ctx); err != nil {
		logger.Error("failed to create schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database schema ready")

	deliveryLog, err := store.NewDeliveryLog(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer deliveryLog.Close()
	logger.Info("connected to Redis")

	deliverer := deliver.NewDeliverer(deliveryLog, cfg.DeliveryTimeout, logger)
	validator := auth.NewStaticTokenValidator(cfg.AuthToken)

	router := api.NewRegistryRouter(pgStore, deliverer, deliveryLog, validator, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("registry starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down registry...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("registry stopped")
}
