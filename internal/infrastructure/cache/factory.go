package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backends bundles the shared-state components used by the sync engine
type Backends struct {
	Locker  Locker
	Reports *ReportStore

	client redis.UniversalClient
	memory *InMemoryReportCache
}

// Distributed reports whether the backends are shared across instances
func (b *Backends) Distributed() bool {
	return b.client != nil
}

// RedisClient returns the shared client, or nil for in-memory backends.
func (b *Backends) RedisClient() redis.UniversalClient {
	return b.client
}

// Close releases the Redis connection or stops the in-memory sweeper
func (b *Backends) Close() error {
	if b.memory != nil {
		_ = b.memory.Close()
	}
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// BackendFactory creates lock and report cache backends based on configuration
type BackendFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// BackendFactoryOption is a functional option for configuring the factory
type BackendFactoryOption func(*BackendFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) BackendFactoryOption {
	return func(f *BackendFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory backends when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) BackendFactoryOption {
	return func(f *BackendFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewBackendFactory creates a new factory
func NewBackendFactory(cfg config.RedisConfig, opts ...BackendFactoryOption) *BackendFactory {
	f := &BackendFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisClient connects to Redis and verifies the connection
func (f *BackendFactory) CreateRedisClient(ctx context.Context) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// CreateRedisBackends builds Redis-backed lock and report cache on client
func (f *BackendFactory) CreateRedisBackends(client redis.UniversalClient) *Backends {
	prefix := f.redisConfig.KeyPrefix
	return &Backends{
		Locker:  NewRedisLocker(client, prefix+"lock:"),
		Reports: NewReportStore(NewRedisReportCache(client, prefix+"report:")),
		client:  client,
	}
}

// CreateInMemoryBackends builds process-local backends
// WARNING: In-memory locks do not exclude syncs running in other process
// instances, and report invalidation only reaches the local cache
func (f *BackendFactory) CreateInMemoryBackends() *Backends {
	memory := NewInMemoryReportCache()
	return &Backends{
		Locker:  NewInMemoryLocker(),
		Reports: NewReportStore(memory),
		memory:  memory,
	}
}

// CreateBackends uses Redis when enabled and reachable, falling back to
// in-memory backends when that is allowed
func (f *BackendFactory) CreateBackends(ctx context.Context) (*Backends, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory lock and report cache")
		return f.CreateInMemoryBackends(), nil
	}

	client, err := f.CreateRedisClient(ctx)
	if err == nil {
		f.logger.Info("using Redis lock and report cache", zap.String("addr", f.redisConfig.Addr()))
		return f.CreateRedisBackends(client), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory lock and report cache. "+
		"Concurrent syncs of one shop are only excluded within this instance.",
		zap.Error(err),
	)
	return f.CreateInMemoryBackends(), nil
}
