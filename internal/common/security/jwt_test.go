package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"family_tree/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = Identity{ID: "u-1", Username: "admin", Role: "admin"}

func TestTokenService_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := NewTokenService([]byte("super-secret"), 24*time.Hour)

	tok, err := svc.Issue(testIdentity)
	require.NoError(t, err)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, testIdentity, claims.Identity())
	assert.Equal(t, 24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt))
	assert.NotEmpty(t, claims.TokenID)
}

func TestTokenService_FreshTokenPerIssue(t *testing.T) {
	t.Parallel()

	svc := NewTokenService([]byte("k"), time.Hour)
	a, err := svc.Issue(testIdentity)
	require.NoError(t, err)
	b, err := svc.Issue(testIdentity)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenService_IssueRejectsIncompleteIdentity(t *testing.T) {
	t.Parallel()

	svc := NewTokenService([]byte("k"), time.Hour)
	_, err := svc.Issue(Identity{ID: "u-1", Username: "admin"})
	require.Error(t, err)
}

func TestTokenService_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	past := time.Now().Add(-25 * time.Hour)
	issuer := NewTokenService(secret, 24*time.Hour, WithClock(func() time.Time { return past }))

	tok, err := issuer.Issue(testIdentity)
	require.NoError(t, err)

	_, err = NewTokenService(secret, 24*time.Hour).Verify(tok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestTokenService_ValidJustBeforeExpiry(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	issuedAt := time.Now().Add(-23 * time.Hour)
	issuer := NewTokenService(secret, 24*time.Hour, WithClock(func() time.Time { return issuedAt }))

	tok, err := issuer.Issue(testIdentity)
	require.NoError(t, err)

	_, err = NewTokenService(secret, 24*time.Hour).Verify(tok)
	require.NoError(t, err)
}

func TestTokenService_TamperedSignature(t *testing.T) {
	t.Parallel()

	svc := NewTokenService([]byte("secret"), time.Hour)
	tok, err := svc.Issue(testIdentity)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	// The first base64 character carries six full bits of the signature.
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	forged := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.Verify(forged)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_TamperedPayload(t *testing.T) {
	t.Parallel()

	svc := NewTokenService([]byte("secret"), time.Hour)
	userTok, err := svc.Issue(Identity{ID: "u-2", Username: "bob", Role: "user"})
	require.NoError(t, err)
	adminTok, err := svc.Issue(testIdentity)
	require.NoError(t, err)

	u := strings.Split(userTok, ".")
	a := strings.Split(adminTok, ".")
	spliced := u[0] + "." + a[1] + "." + u[2]

	_, err = svc.Verify(spliced)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenService([]byte("right"), time.Hour).Issue(testIdentity)
	require.NoError(t, err)

	_, err = NewTokenService([]byte("wrong"), time.Hour).Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	svc := NewTokenService(secret, time.Hour)
	now := time.Now()
	claims := sessionClaims{
		UserID:   "u-1",
		Username: "admin",
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	require.NoError(t, err)
	_, err = svc.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsMissingClaims(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = NewTokenService(secret, time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsTokenWithoutExpiry(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	claims := sessionClaims{
		UserID:           "u-1",
		Username:         "admin",
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = NewTokenService(secret, time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Malformed(t *testing.T) {
	t.Parallel()

	svc := NewTokenService([]byte("k"), time.Hour)
	for _, in := range []string{"", "not.a.jwt", "abc", "a.b"} {
		claims, err := svc.Verify(in)
		assert.Nil(t, claims, in)
		assert.ErrorIs(t, err, ErrInvalidToken, in)
	}
}
