package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/campusware/campus/internal/platform/domain"
	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/internal/platform/store/drivers/sqlite"
	"github.com/campusware/campus/pkg/idx"
	"github.com/campusware/campus/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "campus_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func newTokenService(st *sqlite.Store) *service.TokenService {
	return &service.TokenService{
		Store:      st,
		Access:     jwtx.NewHS256([]byte("test-access-secret")),
		Refresh:    jwtx.NewHS256([]byte("test-refresh-secret")),
		Issuer:     "campus-auth",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}
}

func createUser(t *testing.T, st *sqlite.Store, role string) domain.User {
	t.Helper()

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        idx.New().String() + "@example.com",
		Name:         "Test User",
		PasswordHash: "$2a$12$fakefakefakefakefakefakefakefakefakefakefakefakefake",
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func identityOf(u domain.User) jwtx.Identity {
	return jwtx.Identity{SubjectID: u.ID, Email: u.Email, Role: u.Role}
}

func TestIssuePair(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(st)
	u := createUser(t, st, domain.RoleStudent)

	pair, err := svc.IssuePair(ctx, identityOf(u))
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	// Access token verifies and carries the identity.
	claims, err := svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, identityOf(u), claims.Identity())

	// Refresh token has a live store record.
	active, err := svc.IsRefreshTokenActive(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, active)

	// The two tokens are not interchangeable.
	_, err = svc.VerifyAccessToken(pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidToken)
	_, err = svc.VerifyRefreshToken(pair.AccessToken)
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestIssueRefreshTokenSameInstant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(st)
	u := createUser(t, st, domain.RoleStudent)

	// Pin the clock so both tokens carry identical iat/exp. The jti claim
	// must still keep them, and their fingerprints, distinct.
	at := time.Now()
	svc.Now = func() time.Time { return at }

	a, err := svc.IssueRefreshToken(ctx, identityOf(u))
	require.NoError(t, err)
	b, err := svc.IssueRefreshToken(ctx, identityOf(u))
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	for _, token := range []string{a, b} {
		active, err := svc.IsRefreshTokenActive(ctx, token)
		require.NoError(t, err)
		require.True(t, active)
	}
}

func TestRotateRefreshToken(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation issues a new pair and kills the old token", func(t *testing.T) {
		st := newTestStore(t)
		svc := newTokenService(st)
		u := createUser(t, st, domain.RoleStudent)

		pair, err := svc.IssuePair(ctx, identityOf(u))
		require.NoError(t, err)

		newPair, id, err := svc.RotateRefreshToken(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, u.ID, id.SubjectID)
		require.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

		// Zero grace window: the old token is dead the moment rotation
		// committed.
		active, err := svc.IsRefreshTokenActive(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.False(t, active)

		active, err = svc.IsRefreshTokenActive(ctx, newPair.RefreshToken)
		require.NoError(t, err)
		require.True(t, active)
	})

	t.Run("replaying a rotated token is rejected", func(t *testing.T) {
		st := newTestStore(t)
		svc := newTokenService(st)
		u := createUser(t, st, domain.RoleStudent)

		pair, err := svc.IssuePair(ctx, identityOf(u))
		require.NoError(t, err)

		_, _, err = svc.RotateRefreshToken(ctx, pair.RefreshToken)
		require.NoError(t, err)

		_, _, err = svc.RotateRefreshToken(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrTokenRevoked)
	})

	t.Run("garbage token is invalid", func(t *testing.T) {
		st := newTestStore(t)
		svc := newTokenService(st)

		_, _, err := svc.RotateRefreshToken(ctx, "garbage")
		require.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("valid signature without a record is revoked", func(t *testing.T) {
		st := newTestStore(t)
		svc := newTokenService(st)
		u := createUser(t, st, domain.RoleStudent)

		// Signed with the right secret but never persisted.
		orphan, err := svc.Refresh.Sign(jwtx.NewClaims(identityOf(u), "campus-auth",
			time.Hour, time.Now()))
		require.NoError(t, err)

		_, _, err = svc.RotateRefreshToken(ctx, orphan)
		require.ErrorIs(t, err, service.ErrTokenRevoked)
	})

	t.Run("deactivated account cannot rotate", func(t *testing.T) {
		st := newTestStore(t)
		svc := newTokenService(st)
		u := createUser(t, st, domain.RoleStudent)

		pair, err := svc.IssuePair(ctx, identityOf(u))
		require.NoError(t, err)

		// The token record is still live but the account itself is not.
		_, err = st.DB().ExecContext(ctx,
			`UPDATE users SET is_active = 0 WHERE id = ?`, u.ID)
		require.NoError(t, err)

		_, _, err = svc.RotateRefreshToken(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrTokenRevoked)
	})

	t.Run("rotation reflects a role change", func(t *testing.T) {
		st := newTestStore(t)
		svc := newTokenService(st)
		u := createUser(t, st, domain.RoleStudent)

		pair, err := svc.IssuePair(ctx, identityOf(u))
		require.NoError(t, err)

		_, err = st.DB().ExecContext(ctx,
			`UPDATE users SET role = ? WHERE id = ?`, domain.RoleInstructor, u.ID)
		require.NoError(t, err)

		newPair, id, err := svc.RotateRefreshToken(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, domain.RoleInstructor, id.Role)

		claims, err := svc.VerifyAccessToken(newPair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, domain.RoleInstructor, claims.Role)
	})
}

func TestRevocation(t *testing.T) {
	ctx := context.Background()

	t.Run("revoke single token", func(t *testing.T) {
		st := newTestStore(t)
		svc := newTokenService(st)
		u := createUser(t, st, domain.RoleStudent)

		pair, err := svc.IssuePair(ctx, identityOf(u))
		require.NoError(t, err)

		require.NoError(t, svc.RevokeToken(ctx, pair.RefreshToken))

		active, err := svc.IsRefreshTokenActive(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.False(t, active)

		// Revoking again is a no-op.
		require.NoError(t, svc.RevokeToken(ctx, pair.RefreshToken))
	})

	t.Run("revoke all for subject", func(t *testing.T) {
		st := newTestStore(t)
		svc := newTokenService(st)
		u := createUser(t, st, domain.RoleStudent)

		a, err := svc.IssuePair(ctx, identityOf(u))
		require.NoError(t, err)
		b, err := svc.IssuePair(ctx, identityOf(u))
		require.NoError(t, err)

		require.NoError(t, svc.RevokeAllForSubject(ctx, u.ID))

		for _, token := range []string{a.RefreshToken, b.RefreshToken} {
			active, err := svc.IsRefreshTokenActive(ctx, token)
			require.NoError(t, err)
			require.False(t, active)
		}
	})
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(st)
	u := createUser(t, st, domain.RoleStudent)

	// One live token issued normally.
	pair, err := svc.IssuePair(ctx, identityOf(u))
	require.NoError(t, err)

	// One token issued in the past, already beyond its TTL.
	backdated := newTokenService(st)
	backdated.Now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	stale, err := backdated.IssueRefreshToken(ctx, identityOf(u))
	require.NoError(t, err)

	n, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	active, err := svc.IsRefreshTokenActive(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, active)

	active, err = svc.IsRefreshTokenActive(ctx, stale)
	require.NoError(t, err)
	require.False(t, active)

	// Sweeping again removes nothing.
	n, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
