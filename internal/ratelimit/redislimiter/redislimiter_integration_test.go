package redislimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestLimiter_RealRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	rc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Terminate(ctx) })

	host, err := rc.Host(ctx)
	require.NoError(t, err)
	port, err := rc.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	l := New(host + ":" + port.Port())
	defer l.Close()
	l.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, l.Ping(ctx))
	for i := 1; i <= 3; i++ {
		ok, n, err := l.Allow(ctx, "rl:it", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int64(i), n)
	}
	ok, _, err := l.Allow(ctx, "rl:it", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}
