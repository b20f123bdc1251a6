package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("test-secret", 42, "ADMIN", 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), tok.Exp, 2*time.Second)

	parsed, err := jwt.Parse(tok.Token, func(tk *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
}

func TestNewAccessTokenRejectsWrongSecret(t *testing.T) {
	tok, err := NewAccessToken("right", 1, "USER", 15)
	require.NoError(t, err)
	_, err = jwt.Parse(tok.Token, func(tk *jwt.Token) (interface{}, error) {
		return []byte("wrong"), nil
	})
	assert.Error(t, err)
}

func TestRefreshTokenHashIsStable(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))

	other, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.NotEqual(t, rt.Raw, other.Raw)
}
