package testutil

import (
	"crypto/sha256"
	"io"
	"log/slog"

	"github.com/mcoot/lessonprogress/internal/model"
)

// NopLogger returns a logger that discards all output.
// Use this in tests to avoid log noise.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Identity derives a stable identity from seed
func Identity(seed string) model.Identity {
	return model.Identity(sha256.Sum256([]byte(seed)))
}
