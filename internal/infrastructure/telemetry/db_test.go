package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shop/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type brandRow struct {
	ID   int `gorm:"primaryKey"`
	Name string
}

func (brandRow) TableName() string { return "brands" }

type dbFixture struct {
	db       *gorm.DB
	reader   *sdkmetric.ManualReader
	spans    *tracetest.SpanRecorder
	logs     *observer.ObservedLogs
	instr    *telemetry.DBInstrumentation
	settings telemetry.DBSettings
}

func newDBFixture(t *testing.T, s telemetry.DBSettings) *dbFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&brandRow{}))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})

	core, logs := observer.New(zapcore.WarnLevel)
	s.TracerProvider = tp
	s.DBSystem = "sqlite"
	instr, err := telemetry.InstrumentDB(db, mp.Meter("db"), s, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { _ = instr.Close() })

	return &dbFixture{db: db, reader: reader, spans: spans, logs: logs, instr: instr, settings: s}
}

func histogramCount(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) uint64 {
	t.Helper()
	h, ok := data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected float64 histogram, got %T", data)
	want := attribute.NewSet(attrs...)
	var n uint64
	for _, dp := range h.DataPoints {
		if dp.Attributes.Equals(&want) {
			n += dp.Count
		}
	}
	return n
}

func TestInstrumentDB_QueryMetrics(t *testing.T) {
	f := newDBFixture(t, telemetry.DBSettings{SlowQuery: time.Hour})
	ctx := context.Background()

	require.NoError(t, f.db.WithContext(ctx).Create(&brandRow{ID: 1, Name: "Nike"}).Error)
	var row brandRow
	require.NoError(t, f.db.WithContext(ctx).First(&row, 1).Error)
	err := f.db.WithContext(ctx).First(&row, 2).Error
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	require.NoError(t, f.db.WithContext(ctx).Exec("UPDATE brands SET name = ? WHERE id = ?", "Adidas", 1).Error)
	require.Error(t, f.db.WithContext(ctx).Exec("SELECT * FROM missing_table").Error)

	metrics := collect(t, f.reader)
	duration := metrics["db_query_duration_seconds"]
	require.NotNil(t, duration)
	assert.Equal(t, uint64(1), histogramCount(t, duration,
		telemetry.AttrDBOperation.String("INSERT"), telemetry.AttrDBTable.String("brands")))
	assert.Equal(t, uint64(2), histogramCount(t, duration,
		telemetry.AttrDBOperation.String("SELECT"), telemetry.AttrDBTable.String("brands")))
	assert.Equal(t, uint64(1), histogramCount(t, duration,
		telemetry.AttrDBOperation.String("UPDATE"), telemetry.AttrDBTable.String("unknown")))

	failures := metrics["db_query_errors_total"]
	require.NotNil(t, failures, "the failed raw statement is counted")
	assert.Equal(t, int64(1), sumFor(t, failures,
		telemetry.AttrDBOperation.String("SELECT"), telemetry.AttrDBTable.String("unknown")))
	assert.Equal(t, int64(0), sumFor(t, failures,
		telemetry.AttrDBOperation.String("SELECT"), telemetry.AttrDBTable.String("brands")),
		"record not found is not a failure")

	pool, ok := metrics["db_pool_connections"].(metricdata.Gauge[int64])
	require.True(t, ok)
	maxSet := attribute.NewSet(telemetry.AttrDBState.String("max"))
	var found bool
	for _, dp := range pool.DataPoints {
		if dp.Attributes.Equals(&maxSet) {
			found = true
			assert.Equal(t, int64(1), dp.Value)
		}
	}
	assert.True(t, found)

	assert.Empty(t, f.spans.Ended(), "tracing is off")
	assert.Zero(t, f.logs.Len())
}

func TestInstrumentDB_TracingAndSlowQueries(t *testing.T) {
	f := newDBFixture(t, telemetry.DBSettings{Tracing: true, SlowQuery: time.Nanosecond})

	require.NoError(t, f.db.Create(&brandRow{ID: 7, Name: "Puma"}).Error)

	assert.NotEmpty(t, f.spans.Ended())
	slow := f.logs.FilterMessage("Slow query").All()
	require.NotEmpty(t, slow)
	fields := slow[0].ContextMap()
	assert.Equal(t, "INSERT", fields["operation"])
	assert.Equal(t, "brands", fields["table"])
	assert.NotContains(t, fields, "sql", "statements are not logged without LogFullSQL")
}

func TestInstrumentDB_CloseNil(t *testing.T) {
	var in *telemetry.DBInstrumentation
	assert.NoError(t, in.Close())
}
