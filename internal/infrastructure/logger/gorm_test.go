package logger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)
	changed, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, gormlogger.Warn, changed.logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := WithIdempotencyKey(WithTenantID(WithRequestID(context.Background(), "req-1"), "tenant-1"), "key-1")

	t.Run("query at info level carries context", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info)
		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 1), nil)

		entries := recorded.FilterMessage("SQL Query").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
		assert.Equal(t, "tenant-1", entries[0].ContextMap()["tenant_id"])
		assert.Equal(t, "key-1", entries[0].ContextMap()["idempotency_key"])
		assert.Equal(t, "SELECT 1", entries[0].ContextMap()["sql"])
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Silent)
		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 1), fmt.Errorf("boom"))
		assert.Zero(t, recorded.Len())
	})

	t.Run("record not found is ignored", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn)
		gl.Trace(ctx, time.Now(), sqlFn("SELECT", 0), gorm.ErrRecordNotFound)
		assert.Zero(t, recorded.Len())
	})

	t.Run("duplicate key is debug", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn)
		gl.Trace(ctx, time.Now(), sqlFn("INSERT", 0), gorm.ErrDuplicatedKey)
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.DebugLevel, recorded.All()[0].Level)
	})

	t.Run("retried lock conflicts warn", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn)
		gl.Trace(ctx, time.Now(), sqlFn("SELECT ... FOR UPDATE", 0), &pgconn.PgError{Code: "40P01"})
		entries := recorded.FilterMessage("SQL Conflict").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("errors are logged", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		gl.Trace(ctx, time.Now(), sqlFn("UPDATE", 0), fmt.Errorf("boom"))
		assert.Equal(t, 1, recorded.FilterMessage("SQL Error").Len())
	})

	t.Run("slow query warns", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		gl.Trace(ctx, time.Now().Add(-time.Second), sqlFn("SELECT", 1), nil)
		entries := recorded.FilterMessage("Slow SQL").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("zero threshold disables slow warnings", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(0))
		gl.Trace(ctx, time.Now().Add(-time.Second), sqlFn("SELECT", 1), nil)
		assert.Zero(t, recorded.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("info"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
}
