package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})
}

var alice = Subject{ID: "u-1", Username: "alice", Role: "user"}

func TestManager_RoundTrip(t *testing.T) {
	m := newTestManager()

	access, err := m.GenerateAccessToken(alice)
	require.NoError(t, err)
	claims, err := m.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, KindAccess, claims.Kind)

	refresh, err := m.GenerateRefreshToken(alice)
	require.NoError(t, err)
	claims, err = m.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, claims.Kind)
}

func TestManager_DefaultTTLs(t *testing.T) {
	m := newTestManager()
	assert.Equal(t, 15*time.Minute, m.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, m.RefreshTTL())
}

func TestManager_RefreshIsNotAccess(t *testing.T) {
	m := newTestManager()

	refresh, err := m.GenerateRefreshToken(alice)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, err := m.GenerateAccessToken(alice)
	require.NoError(t, err)
	_, err = m.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_SameSecretStillChecksKind(t *testing.T) {
	m := NewManager(TokenConfig{AccessSecret: []byte("s"), RefreshSecret: []byte("s")})

	refresh, err := m.GenerateRefreshToken(alice)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Expired(t *testing.T) {
	m := newTestManager()
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	access, err := m.GenerateAccessToken(alice)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateAccessToken(access)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_Garbage(t *testing.T) {
	_, err := newTestManager().ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
