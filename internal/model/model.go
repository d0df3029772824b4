// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User represents an account stored on the server. The password is only kept as a bcrypt hash.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"` // display name
	Email     string    `json:"email"`    // unique
	PwdHash   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRef is a reference to a user, optionally populated with its display name.
type UserRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
}

// Session is a freshly issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Claim is the payload signed into a session token.
type Claim struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}
