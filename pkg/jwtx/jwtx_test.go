package jwtx_test

import (
	"testing"
	"time"

	"github.com/campusware/campus/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var identity = jwtx.Identity{
	SubjectID: "01JC5R8MT0EXAMPLE0000000000",
	Email:     "alice@example.com",
	Role:      "student",
}

func TestSignAndVerify(t *testing.T) {
	signer := jwtx.NewHS256([]byte("test-access-secret"))

	t.Run("roundtrip preserves identity", func(t *testing.T) {
		token, err := signer.Sign(jwtx.NewClaims(identity, "campus-auth", time.Minute, time.Now()))
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := signer.Verify(token)
		require.NoError(t, err)
		require.Equal(t, identity, claims.Identity())
		require.Equal(t, "campus-auth", claims.Issuer)
	})

	t.Run("expired token", func(t *testing.T) {
		issued := time.Now().Add(-2 * time.Minute)
		token, err := signer.Sign(jwtx.NewClaims(identity, "campus-auth", time.Minute, issued))
		require.NoError(t, err)

		_, err = signer.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := signer.Sign(jwtx.NewClaims(identity, "campus-auth", time.Minute, time.Now()))
		require.NoError(t, err)

		other := jwtx.NewHS256([]byte("a-different-secret"))
		_, err = other.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := signer.Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)

		_, err = signer.Verify("")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

// Access and refresh tokens are signed with distinct secrets; a token minted
// by one signer must never verify under the other.
func TestAccessRefreshSeparation(t *testing.T) {
	access := jwtx.NewHS256([]byte("access-secret"))
	refresh := jwtx.NewHS256([]byte("refresh-secret"))

	accessToken, err := access.Sign(jwtx.NewClaims(identity, "campus-auth", jwtx.DefaultAccessTokenTTL, time.Now()))
	require.NoError(t, err)
	refreshToken, err := refresh.Sign(jwtx.NewClaims(identity, "campus-auth", jwtx.DefaultRefreshTokenTTL, time.Now()))
	require.NoError(t, err)

	_, err = refresh.Verify(accessToken)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)

	_, err = access.Verify(refreshToken)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}
