package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds database metrics configuration
type DBMetricsConfig struct {
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

// DBMetrics is a gorm plugin recording query counts and latency, plus a
// collector of connection pool gauges
type DBMetrics struct {
	queryTotal     *Counter
	queryDuration  *Seconds
	slowQueryTotal *Counter
	poolConns      *Gauge
	poolConnsMax   *Gauge

	config   DBMetricsConfig
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBMetrics creates the database instruments on meter
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	m := &DBMetrics{config: cfg, logger: logger, stopCh: make(chan struct{})}
	in := NewInstruments(meter)
	m.queryTotal = in.Counter("db_query_total", "Database queries by operation", "{query}")
	m.queryDuration = in.Seconds("db_query_duration_seconds", "Database query latency", DBDurationBuckets)
	m.slowQueryTotal = in.Counter("db_slow_query_total", "Slow database queries by table", "{query}")
	m.poolConns = in.Gauge("db_pool_connections", "Pool connections by state", "{connection}")
	m.poolConnsMax = in.Gauge("db_pool_connections_max", "Maximum open connections", "{connection}")
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements gorm.Plugin
func (m *DBMetrics) Name() string {
	return "ordersync:db_metrics"
}

// Initialize implements gorm.Plugin
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	return registerAround(db, "ordersync_metrics", markQueryStart(metricsStartTimeKey), m.record)
}

func (m *DBMetrics) record(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	elapsed, ok := queryElapsed(ctx, metricsStartTimeKey)
	if !ok {
		return
	}

	op := AttrDBOperation.String(operationOf(db.Statement.SQL.String()))
	m.queryTotal.Inc(ctx, op)
	m.queryDuration.Observe(ctx, elapsed, op)

	if elapsed > m.config.SlowQueryThreshold {
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// StartPoolStatsCollection samples sqlDB.Stats every PoolStatsInterval until
// Stop or ctx is done
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context, sqlDB *sql.DB) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.config.PoolStatsInterval)
		defer ticker.Stop()

		for {
			m.collectPoolStats(ctx, sqlDB)
			select {
			case <-ticker.C:
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *DBMetrics) collectPoolStats(ctx context.Context, sqlDB *sql.DB) {
	stats := sqlDB.Stats()
	m.poolConnsMax.Set(ctx, int64(stats.MaxOpenConnections))
	m.poolConns.Set(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConns.Set(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConns.Set(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool stats collection. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

func operationOf(statement string) string {
	statement = strings.ToUpper(strings.TrimSpace(statement))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(statement, op) {
			return op
		}
	}
	return "OTHER"
}
