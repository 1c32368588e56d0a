package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

var _ gormlogger.Interface = (*GormLogger)(nil)

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestNewGormLogger_Defaults(t *testing.T) {
	log, _ := observed()
	gl := NewGormLogger(log, gormlogger.Warn)

	assert.Equal(t, DefaultSlowThreshold, gl.slowThreshold)
	assert.True(t, gl.ignoreRecordNotFoundError)
	assert.False(t, gl.logFullSQL)

	gl = NewGormLogger(log, gormlogger.Warn, WithSlowThreshold(time.Second), WithIgnoreRecordNotFoundError(false), WithFullSQL(true))
	assert.Equal(t, time.Second, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)
	assert.True(t, gl.logFullSQL)
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	log, _ := observed()
	gl := NewGormLogger(log, gormlogger.Warn)

	changed := gl.LogMode(gormlogger.Info).(*GormLogger)

	assert.Equal(t, gormlogger.Info, changed.logLevel)
	assert.Equal(t, gormlogger.Warn, gl.logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	slow := time.Now().Add(-time.Second)

	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		begin   time.Time
		err     error
		message string
	}{
		{"error", gormlogger.Error, time.Now(), errors.New("duplicate key"), "sql error"},
		{"slow statement", gormlogger.Warn, slow, nil, "slow sql"},
		{"statement at info", gormlogger.Info, time.Now(), nil, "sql"},
		{"fast statement at warn", gormlogger.Warn, time.Now(), nil, ""},
		{"silent", gormlogger.Silent, slow, errors.New("x"), ""},
		{"record not found ignored", gormlogger.Error, time.Now(), gormlogger.ErrRecordNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := observed()
			gl := NewGormLogger(log, tt.level)

			gl.Trace(context.Background(), tt.begin, sqlFn(`SELECT * FROM "orders"`, 3), tt.err)

			if tt.message == "" {
				assert.Zero(t, logs.Len())
				return
			}
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.message, entry.Message)
			assert.Equal(t, `SELECT * FROM "orders"`, entry.ContextMap()["sql"])
			assert.Equal(t, "gorm", entry.LoggerName)
		})
	}
}

func TestGormLogger_TraceCarriesShopID(t *testing.T) {
	log, logs := observed()
	gl := NewGormLogger(log, gormlogger.Info)
	ctx, _ := WithShopID(context.Background(), log, 99)

	gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 1), nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(99), logs.All()[0].ContextMap()["shop_id"])
}

func TestGormLogger_ParamsFilter(t *testing.T) {
	log, _ := observed()

	sql, params := NewGormLogger(log, gormlogger.Info).ParamsFilter(context.Background(), "SELECT ?", "secret")
	assert.Equal(t, "SELECT ?", sql)
	assert.Nil(t, params)

	_, params = NewGormLogger(log, gormlogger.Info, WithFullSQL(true)).ParamsFilter(context.Background(), "SELECT ?", "secret")
	assert.Equal(t, []any{"secret"}, params)
}

func TestGormLogger_Messages(t *testing.T) {
	log, logs := observed()
	gl := NewGormLogger(log, gormlogger.Warn)

	gl.Info(context.Background(), "hidden %d", 1)
	gl.Warn(context.Background(), "warned %d", 2)
	gl.Error(context.Background(), "failed %d", 3)

	msgs := make([]string, 0, logs.Len())
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"warned 2", "failed 3"}, msgs)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("info"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
