package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/lessonprogress/internal/dependencies/clock"
	"github.com/mcoot/lessonprogress/internal/dependencies/random"
	"github.com/mcoot/lessonprogress/internal/events"
	"github.com/mcoot/lessonprogress/internal/events/sse"
	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/scheduler"
	"github.com/mcoot/lessonprogress/internal/services/auth"
	"github.com/mcoot/lessonprogress/internal/services/progress"
	"github.com/mcoot/lessonprogress/internal/storage"
	"github.com/mcoot/lessonprogress/internal/storage/memory"
	"github.com/mcoot/lessonprogress/internal/storage/postgres"
	redisstorage "github.com/mcoot/lessonprogress/internal/storage/redis"
	"github.com/mcoot/lessonprogress/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Default maintenance intervals
const (
	DefaultSessionCleanupInterval = 10 * time.Minute
	DefaultHubCleanupInterval     = time.Minute
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService     *auth.Service
	ProgressService *progress.Service
	HubManager      *sse.HubManager

	// Publisher is set when storage is redis
	Publisher *events.RedisPublisher

	Scheduler *scheduler.Scheduler
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis", "postgres" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *postgres.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// Layout for new records (optional)
	// If zero value, defaults to model.DefaultLayout()
	Layout model.Layout
	// EventsChannel is the Redis pub/sub channel for events (optional)
	EventsChannel string
	// Maintenance intervals (optional)
	SessionCleanupInterval time.Duration
	HubCleanupInterval     time.Duration
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	layout := cfg.Layout
	if layout == (model.Layout{}) {
		layout = model.DefaultLayout()
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	store, publisher, err := newStorage(ctx, cfg, layout, logger)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	app := newWithDependencies(store, clk, rnd, cfg.AuthConfig, layout, publisher, logger)

	if err := app.scheduleMaintenance(cfg); err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

func newStorage(ctx context.Context, cfg Config, layout model.Layout, logger *slog.Logger) (storage.Storage, *events.RedisPublisher, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisCfg := *cfg.RedisConfig
		redisCfg.Layout = layout
		redisStore, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		channel := cfg.EventsChannel
		if channel == "" {
			channel = events.DefaultChannel
		}
		publisher := events.NewRedisPublisher(redisStore.Client(), channel, logger)
		return redisStore, publisher, nil
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgCfg := *cfg.PostgresConfig
		pgCfg.Layout = layout
		pgStore, err := postgres.New(ctx, pgCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pgStore, nil, nil
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		sqliteStore, err := sqlite.New(cfg.SQLitePath, layout)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqliteStore, nil, nil
	default:
		return nil, nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, postgres or sqlite", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	layout model.Layout,
	publisher *events.RedisPublisher,
	logger *slog.Logger,
) *App {
	hubManager := sse.NewHubManager(logger)

	sinks := events.Fanout{events.NewLogSink(logger), hubManager}
	if publisher != nil {
		sinks = append(sinks, publisher)
	}

	authService := auth.New(store, clk, rnd, logger, authCfg)
	progressService := progress.New(store, layout, clk, sinks, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		AuthService:     authService,
		ProgressService: progressService,
		HubManager:      hubManager,
		Publisher:       publisher,
		Scheduler:       scheduler.New(logger),
	}
}

// scheduleMaintenance registers the periodic cleanup jobs
func (a *App) scheduleMaintenance(cfg Config) error {
	sessionInterval := cfg.SessionCleanupInterval
	if sessionInterval == 0 {
		sessionInterval = DefaultSessionCleanupInterval
	}
	hubInterval := cfg.HubCleanupInterval
	if hubInterval == 0 {
		hubInterval = DefaultHubCleanupInterval
	}

	if err := a.Scheduler.Every("clean-expired-sessions", sessionInterval, func() {
		a.AuthService.CleanExpiredSessions()
	}); err != nil {
		return err
	}
	return a.Scheduler.Every("clean-empty-hubs", hubInterval, a.HubManager.CleanupEmptyHubs)
}

// Start begins background maintenance
func (a *App) Start() {
	a.Scheduler.Start()
}

// Close stops background work, disconnects event streams and releases storage
func (a *App) Close() error {
	a.Scheduler.Stop()
	a.HubManager.CloseAll()
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
