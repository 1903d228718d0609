package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/seckill/pkg/errors"
)

func TestManager_GenerateAndParse(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.GenerateToken(42, RoleAdmin)
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "seckill", claims.Issuer)
}

func TestManager_ParseRejects(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	t.Run("过期", func(t *testing.T) {
		expired := NewManager("test-secret", -time.Minute)
		token, err := expired.GenerateToken(1, RoleUser)
		require.NoError(t, err)

		_, err = m.ParseToken(token)
		assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("密钥不匹配", func(t *testing.T) {
		other := NewManager("other-secret", time.Hour)
		token, err := other.GenerateToken(1, RoleUser)
		require.NoError(t, err)

		_, err = m.ParseToken(token)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("格式错误", func(t *testing.T) {
		_, err := m.ParseToken("not-a-token")
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}
