package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("SESSION_SECRET", "session-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Security.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Security.RefreshTokenTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.OAuth.Google().Enabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("SESSION_SECRET", "session-secret")

	_, err := Load(context.Background())
	assert.Error(t, err)
}

func TestLoad_RejectsSharedSecrets(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "same")
	t.Setenv("JWT_REFRESH_SECRET", "same")
	t.Setenv("SESSION_SECRET", "session-secret")

	_, err := Load(context.Background())
	assert.ErrorContains(t, err, "must differ")
}

func TestLoad_UnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "cassandra")

	_, err := Load(context.Background())
	assert.ErrorContains(t, err, "STORE_DRIVER")
}

func TestLoad_OAuthProviderEnabled(t *testing.T) {
	setRequired(t)
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.OAuth.GitHub().Enabled())
	assert.False(t, cfg.OAuth.Facebook().Enabled())
}

func TestPostgresDSN(t *testing.T) {
	p := Postgres{Host: "db", Port: 5433, User: "quiz", Password: "p@ss", Database: "zart", SSLMode: "disable"}
	assert.Equal(t, "postgres://quiz:p%40ss@db:5433/zart?sslmode=disable", p.DSN())

	p.URL = "postgres://override"
	assert.Equal(t, "postgres://override", p.DSN())
}
