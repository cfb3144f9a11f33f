package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

var _ gormlogger.Interface = (*GormLogger)(nil)

func observedGorm(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), logs
}

func stmt(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	upsert := `INSERT INTO "products" ("external_id") VALUES ('p-1')`

	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		wantMsg string
		wantLvl zapcore.Level
	}{
		{"statement at info", gormlogger.Info, 0, nil, "SQL", zapcore.DebugLevel},
		{"statement suppressed at warn", gormlogger.Warn, 0, nil, "", 0},
		{"slow statement", gormlogger.Warn, time.Second, nil, "Slow SQL", zapcore.WarnLevel},
		{"slow statement suppressed at error", gormlogger.Error, time.Second, nil, "", 0},
		{"failure", gormlogger.Error, 0, errors.New("duplicate key"), "SQL error", zapcore.ErrorLevel},
		{"failure wins over slow", gormlogger.Warn, time.Second, errors.New("deadlock"), "SQL error", zapcore.ErrorLevel},
		{"record not found is quiet", gormlogger.Error, 0, gormlogger.ErrRecordNotFound, "", 0},
		{"silent", gormlogger.Silent, time.Second, errors.New("x"), "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gl, logs := observedGorm(tt.level)
			gl.Trace(context.Background(), time.Now().Add(-tt.elapsed), stmt(upsert, 1), tt.err)

			if tt.wantMsg == "" {
				assert.Zero(t, logs.Len())
				return
			}
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantMsg, entry.Message)
			assert.Equal(t, tt.wantLvl, entry.Level)
			assert.Equal(t, "gorm", entry.LoggerName)
			assert.Equal(t, upsert, entry.ContextMap()["sql"])
			assert.EqualValues(t, 1, entry.ContextMap()["rows"])
		})
	}
}

func TestGormLogger_TraceCarriesContextFields(t *testing.T) {
	gl, logs := observedGorm(gormlogger.Info)

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-1")
	ctx, _ = WithSessionID(ctx, zap.NewNop(), "session-9")
	gl.Trace(ctx, time.Now(), stmt("SELECT 1", 1), nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "session-9", fields["session_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestGormLogger_Options(t *testing.T) {
	t.Run("slow threshold disabled", func(t *testing.T) {
		gl, logs := observedGorm(gormlogger.Warn, WithSlowThreshold(0))
		gl.Trace(context.Background(), time.Now().Add(-time.Hour), stmt("SELECT 1", 1), nil)
		assert.Zero(t, logs.Len())
	})

	t.Run("custom slow threshold", func(t *testing.T) {
		gl, logs := observedGorm(gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))
		gl.Trace(context.Background(), time.Now().Add(-50*time.Millisecond), stmt("SELECT 1", 1), nil)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, 10*time.Millisecond, logs.All()[0].ContextMap()["threshold"])
	})

	t.Run("long statements are truncated", func(t *testing.T) {
		gl, logs := observedGorm(gormlogger.Info, WithMaxSQLLength(16))
		gl.Trace(context.Background(), time.Now(), stmt(strings.Repeat("x", 100), 100), nil)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, strings.Repeat("x", 16)+"...(truncated)", logs.All()[0].ContextMap()["sql"])
	})
}

func TestGormLogger_Messages(t *testing.T) {
	gl, logs := observedGorm(gormlogger.Warn)
	ctx := context.Background()

	gl.Info(ctx, "migrated %d tables", 3)
	gl.Warn(ctx, "pool %s", "saturated")
	gl.Error(ctx, "lost connection")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "pool saturated", entries[0].Message)
	assert.Equal(t, "lost connection", entries[1].Message)

	info := gl.LogMode(gormlogger.Info)
	info.Info(ctx, "migrated %d tables", 3)
	assert.Equal(t, "migrated 3 tables", logs.All()[2].Message)
	assert.Equal(t, gormlogger.Warn, gl.level, "LogMode must not mutate the receiver")
}

func TestNewGormLogger_NilLogger(t *testing.T) {
	gl := NewGormLogger(nil, gormlogger.Info)
	assert.NotPanics(t, func() {
		gl.Trace(context.Background(), time.Now(), stmt("SELECT 1", 1), errors.New("x"))
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := map[string]gormlogger.LogLevel{
		"silent": gormlogger.Silent,
		"error":  gormlogger.Error,
		"fatal":  gormlogger.Error,
		"warn":   gormlogger.Warn,
		"info":   gormlogger.Warn,
		"DEBUG":  gormlogger.Info,
		"":       gormlogger.Warn,
	}
	for in, want := range tests {
		assert.Equal(t, want, MapGormLogLevel(in), in)
	}
}
