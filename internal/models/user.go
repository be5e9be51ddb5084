package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	IsGlobalAdmin bool      `json:"is_global_admin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Principal is the resolved caller identity handed to every service call.
// It is rebuilt from committed state on each request; the admin flag is
// never cached across requests.
type Principal struct {
	UserID        uuid.UUID
	IsGlobalAdmin bool
}
