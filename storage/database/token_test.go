package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

var testSecret = []byte("test-secret")

func Test_resetToken(t *testing.T) {
	acct := accountRow{ID: "acct-1", Email: "x@test.com", PasswordHash: []byte("hash-1")}

	token := makeResetToken(testSecret, acct)
	assert.True(t, checkResetToken(testSecret, acct, token))

	t.Run("rejects tampering", func(t *testing.T) {
		assert.False(t, checkResetToken(testSecret, acct, token+"x"))
		assert.False(t, checkResetToken(testSecret, acct, "no-dash"))
		assert.False(t, checkResetToken([]byte("other-secret"), acct, token))
	})

	t.Run("invalidated by password change", func(t *testing.T) {
		changed := acct
		changed.PasswordHash = []byte("hash-2")
		assert.False(t, checkResetToken(testSecret, changed, token))
	})

	t.Run("expires", func(t *testing.T) {
		defer func() { nowFn = time.Now }()
		nowFn = func() time.Time { return time.Now().Add(resetTokenTTL + time.Minute) }
		assert.False(t, checkResetToken(testSecret, acct, token))
	})
}

func Test_accessToken(t *testing.T) {
	ident := session.Identity{ID: "acct-1", Email: "x@test.com"}

	token, err := SignAccessToken(testSecret, ident, time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := VerifyAccessToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.Subject)
	assert.Equal(t, "x@test.com", claims.Email)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := VerifyAccessToken([]byte("other-secret"), token)
		require.Error(t, err)
		assert.True(t, core.IsKind(err, core.KindAuth))
	})

	t.Run("expired", func(t *testing.T) {
		token, err := SignAccessToken(testSecret, ident, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		_, err = VerifyAccessToken(testSecret, token)
		assert.Error(t, err)
	})
}
