package domain

import "time"

// Roles known to the platform. Role is a plain string on the wire; these are
// the values the role gate compares against.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// User is an account holder. PasswordHash is a self-describing bcrypt hash;
// the cost factor is parsed from the hash itself and never stored separately.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
