package httpapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	account, err := validateToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", account)
}

func TestGenerateTokenRequiresAccount(t *testing.T) {
	_, err := GenerateToken(testSecret, "  ", time.Hour)
	assert.Error(t, err)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	_, err = validateToken([]byte("other-secret"), token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsUnsignedAlg(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Account:          "alice",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = validateToken(testSecret, raw)
	assert.Error(t, err)
}

func TestValidateTokenFallsBackToSubject(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "bob",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	account, err := validateToken(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, "bob", account)
}

func TestValidateTokenRequiresAnAccount(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = validateToken(testSecret, raw)
	assert.Error(t, err)
}
