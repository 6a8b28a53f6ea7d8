package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/blindchat/internal/core/identity"
)

func TestToken_RoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	issuer, err := NewTokenIssuer("s3cret")
	require.NoError(t, err)
	verifier, err := NewTokenVerifier("s3cret")
	require.NoError(t, err)
	issuer.WithClock(clock)
	verifier.WithClock(clock)

	want := identity.Identity{ID: "u1", AvatarURL: "https://example.com/a.png", Name: "Ada"}
	token, err := issuer.Issue(want, time.Hour)
	require.NoError(t, err)

	got, err := verifier.Verify(token + "\n")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	clock.Advance(2 * time.Hour)
	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestToken_Rejects(t *testing.T) {
	issuer, err := NewTokenIssuer("s3cret")
	require.NoError(t, err)
	verifier, err := NewTokenVerifier("other")
	require.NoError(t, err)

	token, err := issuer.Issue(identity.Identity{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong secret", token: token},
		{name: "garbage", token: "not-a-token"},
		{name: "unsigned", token: unsignedToken(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestToken_RequiresSecretAndID(t *testing.T) {
	_, err := NewTokenIssuer("")
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = NewTokenVerifier("")
	assert.ErrorIs(t, err, ErrNoSecret)

	issuer, err := NewTokenIssuer("s3cret")
	require.NoError(t, err)
	_, err = issuer.Issue(identity.Identity{}, time.Hour)
	assert.ErrorIs(t, err, identity.ErrNoIdentityID)
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(token, "."))
	return token
}
