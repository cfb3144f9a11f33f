package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const queryStartKey = "telemetry:query_start"

// DBSettings controls database instrumentation.
type DBSettings struct {
	// Tracing registers otelgorm spans for every statement.
	Tracing        bool
	TracerProvider trace.TracerProvider
	DBSystem       string
	// LogFullSQL keeps bound variables in spans and slow query logs.
	LogFullSQL bool
	SlowQuery  time.Duration
}

// DBInstrumentation records query timings and pool usage of one connection.
type DBInstrumentation struct {
	duration     *Histogram
	failures     *Counter
	settings     DBSettings
	logger       *zap.Logger
	registration metric.Registration
}

// InstrumentDB attaches tracing and metrics to db. Call Close on shutdown to
// unregister the pool observer.
func InstrumentDB(db *gorm.DB, meter metric.Meter, s DBSettings, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.DBSystem == "" {
		s.DBSystem = "postgresql"
	}
	if s.SlowQuery <= 0 {
		s.SlowQuery = 200 * time.Millisecond
	}

	if s.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(s.DBSystem)}
		if !s.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if s.TracerProvider != nil {
			opts = append(opts, otelgorm.WithTracerProvider(s.TracerProvider))
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, fmt.Errorf("register otelgorm: %w", err)
		}
	}

	in := &DBInstrumentation{settings: s, logger: logger}
	var err error
	in.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Duration of database statements",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	in.failures, err = NewCounter(meter, "db_query_errors_total", "Database statements that returned an error", "{statements}")
	if err != nil {
		return nil, err
	}
	if err := in.registerCallbacks(db); err != nil {
		return nil, err
	}
	if err := in.observePool(db, meter); err != nil {
		return nil, err
	}

	logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", s.Tracing),
		zap.Duration("slow_query", s.SlowQuery))
	return in, nil
}

// Close stops observing the connection pool.
func (in *DBInstrumentation) Close() error {
	if in == nil || in.registration == nil {
		return nil
	}
	return in.registration.Unregister()
}

func (in *DBInstrumentation) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		kind      string
		operation string
		before    func(string, func(*gorm.DB)) error
		after     func(string, func(*gorm.DB)) error
	}{
		{"create", "INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", "SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", "UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", "", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", "", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		operation := h.operation
		if err := h.before("telemetry:before_"+h.kind, func(tx *gorm.DB) {
			tx.InstanceSet(queryStartKey, time.Now())
		}); err != nil {
			return err
		}
		if err := h.after("telemetry:after_"+h.kind, func(tx *gorm.DB) {
			in.record(tx, operation)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (in *DBInstrumentation) record(tx *gorm.DB, operation string) {
	v, ok := tx.InstanceGet(queryStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	sql := tx.Statement.SQL.String()
	if operation == "" {
		operation = statementOperation(sql)
	}
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	attrs := []attribute.KeyValue{AttrDBOperation.String(operation), AttrDBTable.String(table)}
	in.duration.RecordDuration(ctx, elapsed, attrs...)

	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		in.failures.Inc(ctx, attrs...)
	}
	if elapsed >= in.settings.SlowQuery {
		fields := []zap.Field{
			zap.String("operation", operation),
			zap.String("table", table),
			zap.Duration("duration", elapsed),
			zap.Int64("rows", tx.Statement.RowsAffected),
		}
		if in.settings.LogFullSQL {
			fields = append(fields, zap.String("sql", tx.Dialector.Explain(sql, tx.Statement.Vars...)))
		}
		in.logger.Warn("Slow query", fields...)
	}
}

func (in *DBInstrumentation) observePool(db *gorm.DB, meter metric.Meter) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("underlying sql.DB: %w", err)
	}
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Database pool connections by state"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for since start"),
		metric.WithUnit("{waits}"))
	if err != nil {
		return err
	}
	in.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := sqlDB.Stats()
		o.ObserveInt64(conns, int64(st.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(st.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(conns, int64(st.MaxOpenConnections), metric.WithAttributes(AttrDBState.String("max")))
		o.ObserveInt64(waits, st.WaitCount)
		return nil
	}, conns, waits)
	return err
}

// statementOperation returns the leading SQL verb of raw statements.
func statementOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch verb := strings.ToUpper(fields[0]); verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return verb
	case "WITH":
		return "SELECT"
	default:
		return "OTHER"
	}
}
