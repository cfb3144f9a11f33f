package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	sessionIDKey
	importTypeKey
)

// WithContext attaches log to ctx.
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger attached to ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok && log != nil {
		return log
	}
	return zap.NewNop()
}

// WithRequestID records the HTTP request ID on ctx and on the returned logger.
func WithRequestID(ctx context.Context, log *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return enrich(ctx, log, requestIDKey, "request_id", requestID)
}

// WithSessionID records the import session on ctx and on the returned logger.
// Every statement a pass issues is then attributable to its session.
func WithSessionID(ctx context.Context, log *zap.Logger, sessionID string) (context.Context, *zap.Logger) {
	return enrich(ctx, log, sessionIDKey, "session_id", sessionID)
}

// WithImportType records the session's import type on ctx and on the logger.
func WithImportType(ctx context.Context, log *zap.Logger, importType string) (context.Context, *zap.Logger) {
	return enrich(ctx, log, importTypeKey, "import_type", importType)
}

func enrich(ctx context.Context, log *zap.Logger, key ctxKey, field, value string) (context.Context, *zap.Logger) {
	if log == nil {
		log = FromContext(ctx)
	}
	log = log.With(zap.String(field, value))
	ctx = context.WithValue(ctx, key, value)
	return WithContext(ctx, log), log
}

func stringValue(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetRequestID returns the request ID on ctx, or "".
func GetRequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// GetSessionID returns the import session ID on ctx, or "".
func GetSessionID(ctx context.Context) string { return stringValue(ctx, sessionIDKey) }

// GetImportType returns the import type on ctx, or "".
func GetImportType(ctx context.Context) string { return stringValue(ctx, importTypeKey) }

// GetTraceID returns the active trace ID, or "" without a valid span.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// WithTraceContext adds trace_id and span_id from the active span, if any.
func WithTraceContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
