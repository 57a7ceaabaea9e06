package store

import (
	"context"
	"errors"

	"github.com/campusware/campus/internal/platform/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today,
// postgres later) implement this. Sub-repositories keep concerns tidy and
// let tests fake one repo without faking the world.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed. Multi-step operations
	// that must be atomic (refresh rotation's delete-then-insert) go through
	// here.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store scope.
type Tx interface {
	Users() Users
	RefreshTokens() RefreshTokens
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and duplicate checks.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at. Used
	// by password change and by the transparent rehash-upgrade after login.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateName mutates the display name and bumps updated_at.
	UpdateName(ctx context.Context, userID string, name string) error

	// DeleteUser removes the account row. Refresh tokens are revoked by the
	// caller, not by schema cascade, so the revocation is visible in code.
	DeleteUser(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the record by token fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// DeleteRefreshToken removes a single record by fingerprint. Logout
	// lands here; an absent record is not an error.
	DeleteRefreshToken(ctx context.Context, hash string) error

	// ConsumeRefreshToken removes a single record by fingerprint and
	// returns ErrNotFound if no row was removed. Rotation uses this inside
	// its transaction so a concurrent rotation of the same token fails
	// instead of silently double-succeeding.
	ConsumeRefreshToken(ctx context.Context, hash string) error

	// DeleteAllForSubject bulk-removes every record for a subject (account
	// deletion, password change).
	DeleteAllForSubject(ctx context.Context, subjectID string) error

	// DeleteExpiredRefreshTokens is housekeeping; returns rows removed.
	DeleteExpiredRefreshTokens(ctx context.Context) (int, error)
}
