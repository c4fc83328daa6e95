package redis

import (
	"time"

	"github.com/mcoot/lessonprogress/internal/model"
)

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// Layout fixes the encoded size of every stored record
	Layout model.Layout

	// MaxUpdateRetries bounds how often a conflicting WATCH transaction is retried
	MaxUpdateRetries int

	// GuestAccountTTL expires guest accounts; registered accounts never expire.
	// Progress records never expire.
	GuestAccountTTL time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:              "redis://localhost:6379",
		PoolSize:         10,
		MinIdleConns:     2,
		Layout:           model.DefaultLayout(),
		MaxUpdateRetries: 10,
		GuestAccountTTL:  30 * 24 * time.Hour,
	}
}
