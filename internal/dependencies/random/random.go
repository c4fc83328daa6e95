package random

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/mcoot/lessonprogress/internal/model"
)

// Random provides random value generation that can be mocked for testing
type Random interface {
	// Identity generates a fresh 32-byte identity
	Identity() model.Identity

	// Token generates an opaque URL-safe token with the given prefix
	Token(prefix string) string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Identity returns a random identity. crypto/rand.Read never fails on
// supported platforms.
func (r *CryptoRandom) Identity() model.Identity {
	var id model.Identity
	_, _ = rand.Read(id[:])
	return id
}

// Token returns prefix followed by 16 random bytes, base64url encoded
func (r *CryptoRandom) Token(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}
