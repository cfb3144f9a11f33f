// Package telemetry provides OpenTelemetry integration for tracing, metrics and logs.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics provides the metrics of the ERP exchange: record outcomes,
// record errors, session durations, order status updates and exports.
// All methods are safe to call on a nil *SyncMetrics.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	recordsTotal        *Counter
	recordErrorsTotal   *Counter
	sessionsTotal       *Counter
	orderStatusTotal    *Counter
	ordersExportedTotal *Counter

	sessionDuration *Histogram

	// Gauge metrics (point-in-time values)
	activeSessions *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	sessionsProvider ActiveSessionsProvider
	// seenTypes is owned by the collector goroutine.
	seenTypes map[string]struct{}
}

// ActiveSessionsProvider reports the number of non-terminal sessions per
// import type. It keeps the telemetry layer independent of persistence.
type ActiveSessionsProvider interface {
	CountActiveByType(ctx context.Context) (map[string]int64, error)
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter            metric.Meter
	Logger           *zap.Logger
	SessionsProvider ActiveSessionsProvider
}

// SessionDurationBuckets are bucket boundaries for import session duration (seconds).
var SessionDurationBuckets = []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:            cfg.Meter,
		logger:           logger,
		stopChan:         make(chan struct{}),
		sessionsProvider: cfg.SessionsProvider,
		seenTypes:        make(map[string]struct{}),
	}

	var err error

	sm.recordsTotal, err = NewCounter(
		cfg.Meter,
		"exchange_records_total",
		"Total number of feed records applied, by pass and outcome",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	sm.recordErrorsTotal, err = NewCounter(
		cfg.Meter,
		"exchange_record_errors_total",
		"Total number of feed records rejected, by pass and error code",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	sm.sessionsTotal, err = NewCounter(
		cfg.Meter,
		"exchange_sessions_total",
		"Total number of import sessions finished, by final status",
		"{sessions}",
	)
	if err != nil {
		return nil, err
	}

	sm.sessionDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "exchange_session_duration_seconds",
		Description: "Duration of import sessions from start to terminal state",
		Unit:        "s",
		Boundaries:  SessionDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	sm.orderStatusTotal, err = NewCounter(
		cfg.Meter,
		"exchange_order_status_updates_total",
		"Total number of ERP order status reports, by status and result",
		"{reports}",
	)
	if err != nil {
		return nil, err
	}

	sm.ordersExportedTotal, err = NewCounter(
		cfg.Meter,
		"exchange_orders_exported_total",
		"Total number of orders written to export documents",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	sm.activeSessions, err = NewGauge(
		cfg.Meter,
		"exchange_active_sessions",
		"Current number of non-terminal import sessions",
		"{sessions}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// =============================================================================
// Import Metrics
// =============================================================================

// RecordOutcome counts one applied record.
func (sm *SyncMetrics) RecordOutcome(ctx context.Context, importType, pass, outcome string) {
	if sm == nil {
		return
	}
	sm.recordsTotal.Inc(ctx,
		AttrImportType.String(importType),
		AttrPass.String(pass),
		AttrOutcome.String(outcome),
	)
}

// RecordRecordError counts one rejected record.
func (sm *SyncMetrics) RecordRecordError(ctx context.Context, importType, pass, code string) {
	if sm == nil {
		return
	}
	sm.recordErrorsTotal.Inc(ctx,
		AttrImportType.String(importType),
		AttrPass.String(pass),
		AttrErrorCode.String(code),
	)
}

// RecordSessionFinished records a session reaching a terminal state.
func (sm *SyncMetrics) RecordSessionFinished(ctx context.Context, importType, status string, d time.Duration) {
	if sm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrImportType.String(importType),
		AttrSessionStatus.String(status),
	}
	sm.sessionsTotal.Inc(ctx, attrs...)
	if d > 0 {
		sm.sessionDuration.RecordDuration(ctx, d, attrs...)
	}
}

// =============================================================================
// Order Metrics
// =============================================================================

// RecordOrderStatusUpdate counts one ERP status report. result is an
// outcome (updated, unchanged) or a rejection code.
func (sm *SyncMetrics) RecordOrderStatusUpdate(ctx context.Context, status, result string) {
	if sm == nil {
		return
	}
	sm.orderStatusTotal.Inc(ctx,
		AttrOrderStatus.String(status),
		AttrOutcome.String(result),
	)
}

// RecordOrdersExported counts orders written to an export document.
func (sm *SyncMetrics) RecordOrdersExported(ctx context.Context, count int) {
	if sm == nil || count <= 0 {
		return
	}
	sm.ordersExportedTotal.Add(ctx, int64(count))
}

// RecordActiveSessions records the current number of active sessions of an import type.
func (sm *SyncMetrics) RecordActiveSessions(ctx context.Context, importType string, count int64) {
	if sm == nil {
		return
	}
	sm.activeSessions.Record(ctx, count, AttrImportType.String(importType))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics
// every interval (default: 1 minute). It is non-blocking; use Stop() to end it.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if sm == nil {
		return
	}
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		go sm.runPeriodicCollection(ctx, interval)
	})
}

func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.collectSessionMetrics(ctx)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic sync metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic sync metrics collection")
			return
		case <-ticker.C:
			sm.collectSessionMetrics(ctx)
		}
	}
}

func (sm *SyncMetrics) collectSessionMetrics(ctx context.Context) {
	if sm.sessionsProvider == nil {
		sm.logger.Debug("No sessions provider configured, skipping session metrics collection")
		return
	}
	counts, err := sm.sessionsProvider.CountActiveByType(ctx)
	if err != nil {
		sm.logger.Warn("Failed to count active sessions", zap.Error(err))
		return
	}
	for importType, n := range counts {
		sm.seenTypes[importType] = struct{}{}
		sm.RecordActiveSessions(ctx, importType, n)
	}
	// Types without active sessions drop back to zero.
	for importType := range sm.seenTypes {
		if _, ok := counts[importType]; !ok {
			sm.RecordActiveSessions(ctx, importType, 0)
		}
	}
}

// Stop stops the periodic collection.
func (sm *SyncMetrics) Stop() {
	if sm == nil {
		return
	}
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
