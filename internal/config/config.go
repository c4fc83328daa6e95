package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mcoot/lessonprogress/internal/model"
)

// Storage types
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration loaded from files and environment variables
type Config struct {
	Env         string      `mapstructure:"env"`
	HTTP        HTTP        `mapstructure:"http"`
	Log         Log         `mapstructure:"log"`
	Storage     Storage     `mapstructure:"storage"`
	Layout      Layout      `mapstructure:"layout"`
	Events      Events      `mapstructure:"events"`
	Auth        Auth        `mapstructure:"auth"`
	Maintenance Maintenance `mapstructure:"maintenance"`
}

type HTTP struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Log struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
}

type Storage struct {
	Type        string `mapstructure:"type"`
	RedisURL    string `mapstructure:"redis_url"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

// Layout is the record layout new records are allocated with
type Layout struct {
	Capacity          int  `mapstructure:"capacity"`
	MaxLessonIDLength int  `mapstructure:"max_lesson_id_length"`
	Rewards           bool `mapstructure:"rewards"`
}

type Events struct {
	// RedisChannel is used when storage is redis
	RedisChannel string `mapstructure:"redis_channel"`
}

type Auth struct {
	SessionDuration time.Duration `mapstructure:"session_duration"`
}

type Maintenance struct {
	SessionCleanupInterval time.Duration `mapstructure:"session_cleanup_interval"`
	HubCleanupInterval     time.Duration `mapstructure:"hub_cleanup_interval"`
}

// Model converts the configured layout
func (l Layout) Model() model.Layout {
	return model.Layout{
		Capacity:          l.Capacity,
		MaxLessonIDLength: l.MaxLessonIDLength,
		Rewards:           l.Rewards,
	}
}

// Addr returns the listen address
func (h HTTP) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// SlogLevel parses the configured level, defaulting to info
func (l Log) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads .env (if present), then config/config.yaml (if present) from
// configDir, then the environment
func Load(configDir string) (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	layout := model.DefaultLayout()
	v.SetDefault("env", "local")
	v.SetDefault("http.host", "")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "0s") // SSE streams stay open
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.type", StorageMemory)
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.sqlite_path", "data/lessonprogress.db")
	v.SetDefault("layout.capacity", layout.Capacity)
	v.SetDefault("layout.max_lesson_id_length", layout.MaxLessonIDLength)
	v.SetDefault("layout.rewards", layout.Rewards)
	v.SetDefault("events.redis_channel", "lessonprogress:events")
	v.SetDefault("auth.session_duration", "24h")
	v.SetDefault("maintenance.session_cleanup_interval", "10m")
	v.SetDefault("maintenance.hub_cleanup_interval", "1m")

	// nested keys map to ENV style names: layout.capacity -> LAYOUT_CAPACITY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("storage.redis_url", "REDIS_URL")
	_ = v.BindEnv("storage.database_url", "DATABASE_URL")
	_ = v.BindEnv("storage.sqlite_path", "SQLITE_PATH")
	_ = v.BindEnv("auth.session_duration", "SESSION_DURATION")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings are usable together
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory, StorageSQLite:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL required when STORAGE_TYPE=redis", ErrInvalidConfig)
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL required when STORAGE_TYPE=postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalidConfig, c.Storage.Type)
	}

	if err := c.Layout.Model().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("%w: http port must be positive", ErrInvalidConfig)
	}
	return nil
}
