package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis points at a port nothing listens on
func unreachableRedis() config.RedisConfig {
	return config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1, KeyPrefix: "test:"}
}

func TestBackendFactory_RedisDisabled(t *testing.T) {
	f := NewBackendFactory(config.RedisConfig{Enabled: false})

	backends, err := f.CreateBackends(context.Background())
	require.NoError(t, err)
	defer backends.Close()

	assert.False(t, backends.Distributed())
	assert.IsType(t, &InMemoryLocker{}, backends.Locker)
	require.NotNil(t, backends.Reports)
}

func TestBackendFactory_FallsBackWhenRedisUnreachable(t *testing.T) {
	f := NewBackendFactory(unreachableRedis())
	f.pingTimeout = 200 * time.Millisecond

	backends, err := f.CreateBackends(context.Background())
	require.NoError(t, err)
	defer backends.Close()

	assert.False(t, backends.Distributed())
	assert.IsType(t, &InMemoryLocker{}, backends.Locker)
}

func TestBackendFactory_NoFallback(t *testing.T) {
	f := NewBackendFactory(unreachableRedis(), WithInMemoryFallback(false))
	f.pingTimeout = 200 * time.Millisecond

	backends, err := f.CreateBackends(context.Background())
	require.Error(t, err)
	assert.Nil(t, backends)
	assert.Contains(t, err.Error(), "Redis required but unavailable")
}
