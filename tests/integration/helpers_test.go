//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zart/quizzer/pkg/client"
)

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func baseURL() string {
	return envOrDefault("INTEGRATION_BASE_URL", "http://localhost:5000")
}

type testUser struct {
	Username string
	Email    string
	Password string
	ID       string
	Client   *client.Client
}

// registerUser creates a fresh account and returns a client holding its session.
func registerUser(t *testing.T, prefix string) testUser {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	u := testUser{
		Username: fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano()%1_000_000_000),
		Password: "testpassword123",
		Client:   client.New(client.Options{BaseURL: baseURL()}),
	}
	u.Email = u.Username + "@example.com"

	resp, err := u.Client.Register(ctx, u.Username, u.Email, u.Password)
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	u.ID = resp.User.ID
	return u
}
