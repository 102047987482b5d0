package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/articlegen/articlegen/internal/shared"
)

func newTestTokens(t *testing.T, secret string, now time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService(secret, 0)
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	return svc
}

func TestTokenIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokens(t, "super-secret", now)

	token, expiresAt, err := svc.Issue(shared.Identity{ID: "user-123", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(7*24*time.Hour), expiresAt)

	id, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, shared.Identity{ID: "user-123", Email: "a@example.com"}, id)
}

func TestTokenExpired(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokens(t, "secret", issuedAt)
	token, _, err := svc.Issue(shared.Identity{ID: "u1"})
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(DefaultTokenTTL - time.Minute) }
	_, err = svc.Verify(token)
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(DefaultTokenTTL + time.Minute) }
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenTamperedSignature(t *testing.T) {
	svc := newTestTokens(t, "secret", time.Now())
	token, _, err := svc.Issue(shared.Identity{ID: "u1"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	first := parts[2][0]
	replacement := byte('A')
	if first == 'A' {
		replacement = 'B'
	}
	parts[2] = string(replacement) + parts[2][1:]

	_, err = svc.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenTamperedClaims(t *testing.T) {
	svc := newTestTokens(t, "secret", time.Now())
	token, _, err := svc.Issue(shared.Identity{ID: "u1"})
	require.NoError(t, err)
	forged, _, err := svc.Issue(shared.Identity{ID: "admin"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	forgedParts := strings.Split(forged, ".")
	parts[1] = forgedParts[1]

	_, err = svc.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	now := time.Now()
	token, _, err := newTestTokens(t, "right-secret", now).Issue(shared.Identity{ID: "u2"})
	require.NoError(t, err)

	_, err = newTestTokens(t, "wrong-secret", now).Verify(token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	svc := newTestTokens(t, "secret", time.Now())
	claims := tokenClaims{
		UserID:           "u3",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenRequiresExpiryAndID(t *testing.T) {
	svc := newTestTokens(t, "secret", time.Now())

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{UserID: "u4"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.Verify(noExp)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.Verify(noID)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenMalformed(t *testing.T) {
	svc := newTestTokens(t, "k", time.Now())
	_, err := svc.Verify("not.a.jwt")
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
	_, err = svc.Verify("")
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService("", time.Hour)
	assert.Error(t, err)
}
