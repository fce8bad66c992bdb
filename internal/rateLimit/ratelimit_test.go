package rateLimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/movie-ticket-booking/internal/rateLimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRateLimiter_Allow(t *testing.T) {
	if testing.Short() {
		t.Skip("redis container skipped in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	rl := rateLimit.NewRateLimiter(client)
	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "user:a", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "user:a", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "user:b", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "keys are counted separately")
}
