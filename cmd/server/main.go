package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/lessonprogress/internal/api"
	"github.com/mcoot/lessonprogress/internal/config"
	"github.com/mcoot/lessonprogress/internal/factory"
	"github.com/mcoot/lessonprogress/internal/services/auth"
	"github.com/mcoot/lessonprogress/internal/storage/postgres"
	redisstorage "github.com/mcoot/lessonprogress/internal/storage/redis"
)

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// Build factory config
	factoryCfg := factory.Config{
		Logger:      logger,
		StorageType: cfg.Storage.Type,
		SQLitePath:  cfg.Storage.SQLitePath,
		Layout:      cfg.Layout.Model(),
		AuthConfig: auth.Config{
			SessionDuration: cfg.Auth.SessionDuration,
		},
		EventsChannel:          cfg.Events.RedisChannel,
		SessionCleanupInterval: cfg.Maintenance.SessionCleanupInterval,
		HubCleanupInterval:     cfg.Maintenance.HubCleanupInterval,
	}

	switch cfg.Storage.Type {
	case factory.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	case factory.StorageTypePostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Storage.DatabaseURL
		factoryCfg.PostgresConfig = &pgCfg
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create application factory
	app, err := factory.New(ctx, factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close error", slog.String("error", err.Error()))
		}
	}()
	app.Start()

	layout := app.ProgressService.Layout()
	logger.Info("progress records configured",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Type),
		slog.Int("capacity", layout.Capacity),
		slog.Int("max_lesson_id_length", layout.MaxLessonIDLength),
		slog.Bool("rewards", layout.Rewards),
		slog.Int("record_size", layout.Size()))

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		AuthService:     app.AuthService,
		ProgressService: app.ProgressService,
		HubManager:      app.HubManager,
	})

	// Create server
	server := api.NewServer(router, api.ServerConfig{
		Host:            cfg.HTTP.Host,
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			cancel()
			_ = app.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Close streams first so SSE handlers return before the server drains
		app.HubManager.CloseAll()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
