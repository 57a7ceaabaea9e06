package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campusware/campus/internal/platform/domain"
	"github.com/campusware/campus/internal/platform/store"
	"github.com/campusware/campus/pkg/idx"
	"github.com/campusware/campus/pkg/passwd"
	"github.com/campusware/campus/pkg/slogx"
)

var (
	ErrEmailTaken = errors.New("email_already_registered")

	// ErrInvalidCredentials is returned for unknown email AND wrong password
	// alike so a caller cannot probe which emails exist.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	ErrAccountDisabled = errors.New("account_disabled")
	ErrUserNotFound    = errors.New("user_not_found")
)

// UserService owns account lifecycle: registration, credential checks,
// password and profile changes, and deletion. Token state lives in
// TokenService; the two meet only in the HTTP layer.
type UserService struct {
	Store  store.Store
	Hasher *passwd.Hasher

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register creates an account with the given role. Password strength is the
// HTTP layer's concern; by the time we are here the password is accepted and
// only needs hashing.
func (s *UserService) Register(ctx context.Context, email, name, password, role string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := s.Hasher.Hash(ctx, password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate checks the email/password pair and returns the user on
// success. On a cost upgrade the hash is transparently replaced; a failure
// to persist the new hash is logged and swallowed since the login itself
// already succeeded.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn roughly the same time as a real verification so the
			// timing of the response does not reveal whether the email
			// exists.
			_, _ = s.Hasher.Verify(ctx, password, passwd.DummyHash)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	ok, err := s.Hasher.Verify(ctx, password, u.PasswordHash)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return domain.User{}, ErrAccountDisabled
	}

	if passwd.NeedsRehash(u.PasswordHash) {
		if err := s.rehash(ctx, &u, password); err != nil {
			l.Warn("password rehash upgrade failed", "user_id", u.ID, "error", err)
		}
	}

	return u, nil
}

func (s *UserService) rehash(ctx context.Context, u *domain.User, password string) error {
	hash, err := s.Hasher.Hash(ctx, password)
	if err != nil {
		return err
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// GetByID loads a user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

// ChangePassword verifies the current password before writing the new hash.
// Revoking the user's refresh tokens afterwards is the caller's job so the
// revocation shares a response path with the new token issuance.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	ok, err := s.Hasher.Verify(ctx, current, u.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := s.Hasher.Hash(ctx, next)
	if err != nil {
		return err
	}
	return s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
}

// UpdateName updates the display name on the profile.
func (s *UserService) UpdateName(ctx context.Context, userID, name string) (domain.User, error) {
	if err := s.Store.Users().UpdateName(ctx, userID, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return s.GetByID(ctx, userID)
}

// Delete removes the account and all of its refresh tokens in one
// transaction. The schema cascades the token delete, but doing it explicitly
// keeps the behavior independent of pragma settings.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().DeleteAllForSubject(ctx, userID); err != nil {
			return err
		}
		return tx.Users().DeleteUser(ctx, userID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
