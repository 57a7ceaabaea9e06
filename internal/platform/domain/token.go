package domain

import "time"

// RefreshToken is the server-persisted record backing one refresh token.
// TokenHash is the SHA-256 fingerprint of the opaque token value; the raw
// value never touches the database. A token whose record is absent is not
// valid, whatever its signature says; the store is the revocation authority.
type RefreshToken struct {
	ID        string
	SubjectID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenPair is what login, registration, and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
