package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is anything that can sign Claims into a compact token.
type Signer interface {
	Sign(Claims) (string, error)
}

// Verifier validates a compact token and gives back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// HS256 signs and verifies tokens with a single symmetric secret. The access
// and refresh token paths each get their own HS256 instance with distinct
// secrets, so a token minted for one path can never verify on the other.
type HS256 struct {
	secret []byte
}

// NewHS256 returns a combined Signer/Verifier over the given secret.
func NewHS256(secret []byte) *HS256 {
	return &HS256{secret: secret}
}

// Sign produces a compact HS256 token for the claims.
func (h *HS256) Sign(c Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(h.secret)
}

// Verify parses and validates a compact token. Expiry is checked here, so a
// nil error means the token is both authentic and current. Only HS256 is
// accepted; an attacker-chosen "alg" header fails before key lookup.
func (h *HS256) Verify(raw string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return h.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}
	return claims, nil
}
