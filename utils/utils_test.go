package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("s3cret", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, VerifyPassword("s3cret", ""))

	assert.True(t, CheckAdminPassword(DefaultAdminPassword, ""))
	assert.False(t, CheckAdminPassword("other", ""))
	assert.True(t, CheckAdminPassword("s3cret", hash))
	assert.False(t, CheckAdminPassword(DefaultAdminPassword, hash))
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("dev-1")
	require.NoError(t, err)

	claims, err := VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", claims["device_id"])
}

func TestJWTRejectsTampered(t *testing.T) {
	token, err := GenerateJWT("dev-1")
	require.NoError(t, err)

	_, err = VerifyJWT(token + "x")
	assert.Error(t, err)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"device_id": "dev-1",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	forged, err := other.SignedString([]byte("not-the-secret"))
	require.NoError(t, err)
	_, err = VerifyJWT(forged)
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"device_id": "dev-1",
		"exp":       time.Now().Add(-time.Minute).Unix(),
	})
	s, err := expired.SignedString(secret())
	require.NoError(t, err)

	_, err = VerifyJWT(s)
	assert.Error(t, err)
}
