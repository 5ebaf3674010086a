package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(accessExpiry time.Duration) *Manager {
	return NewManager(strings.Repeat("a", 32), "test", accessExpiry, 7*24*time.Hour)
}

func TestManager_GenerateAndValidate(t *testing.T) {
	manager := newTestManager(15 * time.Minute)

	pair, err := manager.GenerateTokenPair("user-1", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := manager.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "test", claims.Issuer)
}

func TestManager_ValidateToken_Invalid(t *testing.T) {
	manager := newTestManager(15 * time.Minute)

	t.Run("格式错误的令牌", func(t *testing.T) {
		_, err := manager.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("密钥不匹配的令牌", func(t *testing.T) {
		other := NewManager(strings.Repeat("b", 32), "test", 15*time.Minute, time.Hour)
		pair, err := other.GenerateTokenPair("user-1", "alice")
		require.NoError(t, err)

		_, err = manager.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("过期的令牌", func(t *testing.T) {
		expired := newTestManager(-time.Minute)
		pair, err := expired.GenerateTokenPair("user-1", "alice")
		require.NoError(t, err)

		_, err = manager.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestManager_RefreshTokenPair(t *testing.T) {
	manager := newTestManager(15 * time.Minute)

	pair, err := manager.GenerateTokenPair("user-1", "alice")
	require.NoError(t, err)

	refreshed, err := manager.RefreshTokenPair(pair.RefreshToken)
	require.NoError(t, err)

	claims, err := manager.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, err = manager.RefreshTokenPair("garbage")
	assert.Error(t, err)
}
