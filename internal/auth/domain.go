package auth

import "time"

// User represents an authenticated user account belonging to one tenant.
type User struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
