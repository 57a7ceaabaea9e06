package service

import (
	"context"
	"errors"
	"time"

	"github.com/campusware/campus/internal/platform/domain"
	"github.com/campusware/campus/internal/platform/store"
	"github.com/campusware/campus/pkg/cryptox"
	"github.com/campusware/campus/pkg/idx"
	"github.com/campusware/campus/pkg/jwtx"
	"github.com/campusware/campus/pkg/slogx"
)

var (
	// ErrInvalidToken covers bad signature, malformed, and expired tokens.
	// Callers are told "invalid or expired" either way; the distinction is
	// logged, not leaked.
	ErrInvalidToken = errors.New("invalid_or_expired_token")

	// ErrTokenRevoked is a syntactically valid refresh token with no live
	// store record. Signature says yes, the store says no; the store wins.
	ErrTokenRevoked = errors.New("refresh_token_revoked")
)

// TokenService issues, verifies, rotates, and revokes the two token kinds.
// Access tokens are stateless and live only as long as their embedded
// expiry. Refresh tokens are additionally persisted by fingerprint so they
// can be revoked before their expiry.
type TokenService struct {
	Store store.Store

	Access  *jwtx.HS256
	Refresh *jwtx.HS256

	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IssueAccessToken signs a short-lived access token for the identity.
// Nothing is persisted; validity is purely signature plus expiry.
func (s *TokenService) IssueAccessToken(id jwtx.Identity) (string, error) {
	return s.Access.Sign(jwtx.NewClaims(id, s.Issuer, s.AccessTTL, s.now()))
}

// IssueRefreshToken signs a refresh token and persists its record. The
// record, not the signature, is what keeps the token alive. The record's
// ULID rides in the jti claim, so two issuances for the same subject in the
// same second still produce distinct tokens and distinct fingerprints.
func (s *TokenService) IssueRefreshToken(ctx context.Context, id jwtx.Identity) (string, error) {
	recordID := idx.New().String()

	claims := jwtx.NewClaims(id, s.Issuer, s.RefreshTTL, s.now())
	claims.ID = recordID
	token, err := s.Refresh.Sign(claims)
	if err != nil {
		return "", err
	}

	record := domain.RefreshToken{
		ID:        recordID,
		SubjectID: id.SubjectID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: s.now().Add(s.RefreshTTL),
		CreatedAt: s.now(),
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, record); err != nil {
		return "", err
	}
	return token, nil
}

// IssuePair issues an access/refresh pair for the identity.
func (s *TokenService) IssuePair(ctx context.Context, id jwtx.Identity) (domain.TokenPair, error) {
	access, err := s.IssueAccessToken(id)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(ctx, id)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken checks signature and expiry and returns the claims.
func (s *TokenService) VerifyAccessToken(token string) (jwtx.Claims, error) {
	claims, err := s.Access.Verify(token)
	if err != nil {
		return jwtx.Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken is a signature-and-expiry check only; it does NOT
// consult the store. Callers must also pass IsRefreshTokenActive before
// trusting the token.
func (s *TokenService) VerifyRefreshToken(token string) (jwtx.Claims, error) {
	claims, err := s.Refresh.Verify(token)
	if err != nil {
		return jwtx.Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// IsRefreshTokenActive is the authoritative revocation check: the record
// must be present AND unexpired.
func (s *TokenService) IsRefreshTokenActive(ctx context.Context, token string) (bool, error) {
	record, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.ExpiresAt.After(s.now()), nil
}

// RotateRefreshToken exchanges a live refresh token for a fresh pair. The
// old record is deleted and the new one inserted in a single transaction, so
// the old token fails IsRefreshTokenActive immediately. A stolen token that
// has already been used buys the thief nothing.
func (s *TokenService) RotateRefreshToken(
	ctx context.Context,
	oldToken string,
) (domain.TokenPair, jwtx.Identity, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.VerifyRefreshToken(oldToken)
	if err != nil {
		return domain.TokenPair{}, jwtx.Identity{}, err
	}

	oldHash := cryptox.FingerprintToken(oldToken)
	record, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Warn("refresh token replay or revoked", "subject_id", claims.Subject)
			return domain.TokenPair{}, jwtx.Identity{}, ErrTokenRevoked
		}
		return domain.TokenPair{}, jwtx.Identity{}, err
	}
	if !record.ExpiresAt.After(s.now()) {
		return domain.TokenPair{}, jwtx.Identity{}, ErrTokenRevoked
	}

	// Re-read the user so a role change or deactivation since issuance is
	// reflected in the new pair.
	u, err := s.Store.Users().GetUserByID(ctx, record.SubjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, jwtx.Identity{}, ErrTokenRevoked
		}
		return domain.TokenPair{}, jwtx.Identity{}, err
	}
	if !u.IsActive {
		return domain.TokenPair{}, jwtx.Identity{}, ErrTokenRevoked
	}

	id := jwtx.Identity{SubjectID: u.ID, Email: u.Email, Role: u.Role}

	access, err := s.IssueAccessToken(id)
	if err != nil {
		return domain.TokenPair{}, jwtx.Identity{}, err
	}
	newRecordID := idx.New().String()
	newClaims := jwtx.NewClaims(id, s.Issuer, s.RefreshTTL, s.now())
	newClaims.ID = newRecordID
	newRefresh, err := s.Refresh.Sign(newClaims)
	if err != nil {
		return domain.TokenPair{}, jwtx.Identity{}, err
	}

	newRecord := domain.RefreshToken{
		ID:        newRecordID,
		SubjectID: u.ID,
		TokenHash: cryptox.FingerprintToken(newRefresh),
		ExpiresAt: s.now().Add(s.RefreshTTL),
		CreatedAt: s.now(),
	}

	// Consume-then-insert in one transaction: no grace window for the old
	// token, no state where the subject holds zero live tokens mid-rotation.
	// Consuming requires the row to still exist, so of two rotations racing
	// on one token exactly one commits; the loser sees the row gone.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().ConsumeRefreshToken(ctx, oldHash); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRecord)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Warn("refresh token consumed concurrently", "subject_id", claims.Subject)
			return domain.TokenPair{}, jwtx.Identity{}, ErrTokenRevoked
		}
		return domain.TokenPair{}, jwtx.Identity{}, err
	}

	return domain.TokenPair{AccessToken: access, RefreshToken: newRefresh}, id, nil
}

// RevokeToken removes a single refresh token's record (logout). Revoking an
// already-absent token is a no-op.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	return s.Store.RefreshTokens().DeleteRefreshToken(ctx, cryptox.FingerprintToken(token))
}

// RevokeAllForSubject removes every refresh token for a subject (account
// deletion, password change).
func (s *TokenService) RevokeAllForSubject(ctx context.Context, subjectID string) error {
	return s.Store.RefreshTokens().DeleteAllForSubject(ctx, subjectID)
}

// SweepExpired removes store entries whose expiry has passed. Idempotent,
// safe on any schedule.
func (s *TokenService) SweepExpired(ctx context.Context) (int, error) {
	return s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx)
}
