package model

import (
	"encoding/hex"
	"fmt"
)

// IdentitySize is the byte length of a user identity
const IdentitySize = 32

// Identity is the stable, externally verified value identifying a user.
// It is both the key of a progress record and its access-control anchor.
type Identity [IdentitySize]byte

// ParseIdentity decodes a hex-encoded identity
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	if len(s) != hex.EncodedLen(IdentitySize) {
		return id, fmt.Errorf("%w: expected %d hex characters", ErrInvalidIdentity, hex.EncodedLen(IdentitySize))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return id, nil
}

// IdentityFromBytes copies b into an Identity
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentitySize {
		return id, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidIdentity, IdentitySize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hex form
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the identity is unset
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// MarshalText implements encoding.TextMarshaler
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
