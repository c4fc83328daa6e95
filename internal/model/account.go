package model

import "time"

// Account is how the identity provider knows a user.
// The progress core only ever sees the Identity.
type Account struct {
	Identity     Identity  `json:"identity"`
	DisplayName  string    `json:"display_name"`
	Username     string    `json:"username,omitempty"`      // empty for guests
	PasswordHash string    `json:"password_hash,omitempty"` // bcrypt hash
	IsGuest      bool      `json:"is_guest"`
	CreatedAt    time.Time `json:"created_at"`
}
