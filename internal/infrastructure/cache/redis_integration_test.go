//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/erp/ordersync/internal/infrastructure/config"
)

// startRedis runs a throwaway Redis container and returns its settings
func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return config.RedisConfig{
		Enabled:   true,
		Host:      host,
		Port:      port.Int(),
		KeyPrefix: "it:",
	}
}

func TestRedisBackends_Integration(t *testing.T) {
	cfg := startRedis(t)
	ctx := context.Background()

	backends, err := NewBackendFactory(cfg, WithInMemoryFallback(false)).CreateBackends(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backends.Close() })

	require.True(t, backends.Distributed())
	require.NotNil(t, backends.RedisClient())

	t.Run("lock excludes a second owner until released", func(t *testing.T) {
		release, err := backends.Locker.Acquire(ctx, "shop:1", time.Minute)
		require.NoError(t, err)

		_, err = backends.Locker.Acquire(ctx, "shop:1", time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)

		// another instance sharing the client sees the same lock
		other := NewRedisLocker(backends.RedisClient(), cfg.KeyPrefix+"lock:")
		_, err = other.Acquire(ctx, "shop:1", time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)

		require.NoError(t, release(ctx))

		release, err = other.Acquire(ctx, "shop:1", time.Minute)
		require.NoError(t, err)
		require.NoError(t, release(ctx))
	})

	t.Run("lock expires with its ttl", func(t *testing.T) {
		_, err := backends.Locker.Acquire(ctx, "shop:2", 100*time.Millisecond)
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			release, err := backends.Locker.Acquire(ctx, "shop:2", time.Minute)
			if err != nil {
				return false
			}
			_ = release(ctx)
			return true
		}, 2*time.Second, 50*time.Millisecond)
	})

	t.Run("stale release does not drop a newer owner", func(t *testing.T) {
		stale, err := backends.Locker.Acquire(ctx, "shop:3", 100*time.Millisecond)
		require.NoError(t, err)
		time.Sleep(200 * time.Millisecond)

		current, err := backends.Locker.Acquire(ctx, "shop:3", time.Minute)
		require.NoError(t, err)
		require.NoError(t, stale(ctx))

		_, err = backends.Locker.Acquire(ctx, "shop:3", time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)
		require.NoError(t, current(ctx))
	})

	t.Run("reports are invalidated per shop", func(t *testing.T) {
		type report struct {
			Orders int64 `json:"orders"`
		}
		require.NoError(t, backends.Reports.Set(ctx, "geo:10:states:6:2026-04-01", report{Orders: 3}, time.Minute))
		require.NoError(t, backends.Reports.Set(ctx, "geo:11:states:6:2026-04-01", report{Orders: 5}, time.Minute))

		var got report
		found, err := backends.Reports.Get(ctx, "geo:10:states:6:2026-04-01", &got)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(3), got.Orders)

		require.NoError(t, backends.Reports.InvalidateShop(ctx, 10))

		found, err = backends.Reports.Get(ctx, "geo:10:states:6:2026-04-01", &got)
		require.NoError(t, err)
		assert.False(t, found)

		found, err = backends.Reports.Get(ctx, "geo:11:states:6:2026-04-01", &got)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(5), got.Orders)
	})
}
