package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Short access tokens bound the damage of a
// leaked bearer token; the refresh token's server-side record handles the
// longer tail.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
)

// Identity is the authenticated caller as embedded in, and recovered from,
// an access token. Keeping this an explicit struct stops the claim shape
// drifting between issuance and verification sites.
type Identity struct {
	SubjectID string `json:"subjectId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// Claims are the signed token claims used across the service. Email and Role
// ride alongside the registered claims so the authn middleware can build an
// Identity without a user lookup.
type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Identity converts verified claims back into the caller's identity.
func (c *Claims) Identity() Identity {
	return Identity{
		SubjectID: c.Subject,
		Email:     c.Email,
		Role:      c.Role,
	}
}

// NewClaims builds minimally-correct claims for an identity.
func NewClaims(id Identity, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: id.Email,
		Role:  id.Role,
	}
}
