package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Issue("user-1", "ada@example.com")
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Username)
}

func TestVerifyRejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	valid, err := issuer.Issue("user-1", "ada@example.com")
	require.NoError(t, err)

	expiredIssuer := NewTokenIssuer("secret", time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.Issue("user-1", "ada@example.com")
	require.NoError(t, err)

	otherKey, err := NewTokenIssuer("other", time.Hour).Issue("user-1", "ada@example.com")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":    "not-a-token",
		"expired":    expired,
		"wrong key":  otherKey,
		"alg none":   none,
		"missing id": noID,
		"truncated":  valid[:len(valid)-4],
		"empty":      "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, CheckPassword("hunter22", hash))
	assert.False(t, CheckPassword("hunter23", hash))
	assert.False(t, CheckPassword("hunter22", "not-a-hash"))
}
