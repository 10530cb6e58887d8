//go:build integration

// Package testutil holds fixtures shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisImage is the image used for ledger integration tests.
const RedisImage = "redis:7-alpine"

// StartRedis starts a throwaway Redis container and returns its URL.
// The container is terminated when the test finishes.
func StartRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	redisPort := nat.Port("6379/tcp")

	req := testcontainers.ContainerRequest{
		Image:        RedisImage,
		ExposedPorts: []string{string(redisPort)},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Redis container")

	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)

	port, err := redisC.MappedPort(ctx, redisPort)
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}
