package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("missing logger is a no-op", func(t *testing.T) {
		log := FromContext(context.Background())
		require.NotNil(t, log)
		assert.NotPanics(t, func() { log.Info("dropped") })
	})

	t.Run("attached logger is returned", func(t *testing.T) {
		log := zap.NewExample()
		assert.Same(t, log, FromContext(WithContext(context.Background(), log)))
	})
}

func TestSessionEnrichment(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, log := WithRequestID(context.Background(), base, "req-1")
	ctx, log = WithSessionID(ctx, log, "5f0c8e1e-0000-4000-8000-000000000001")
	ctx, log = WithImportType(ctx, log, "catalog")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "5f0c8e1e-0000-4000-8000-000000000001", GetSessionID(ctx))
	assert.Equal(t, "catalog", GetImportType(ctx))

	log.Info("Pass started")
	FromContext(ctx).Info("from context")

	require.Equal(t, 2, logs.Len())
	for _, e := range logs.All() {
		fields := e.ContextMap()
		assert.Equal(t, "req-1", fields["request_id"], e.Message)
		assert.Equal(t, "5f0c8e1e-0000-4000-8000-000000000001", fields["session_id"], e.Message)
		assert.Equal(t, "catalog", fields["import_type"], e.Message)
	}
}

func TestEnrich_NilLoggerFallsBackToContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))

	_, log := WithSessionID(ctx, nil, "s-1")
	log.Info("resumed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "s-1", logs.All()[0].ContextMap()["session_id"])
}

func TestContextValues_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetSessionID(ctx))
	assert.Empty(t, GetImportType(ctx))
	assert.Empty(t, GetTraceID(ctx))
}

func TestTraceCorrelation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "import")
	defer span.End()

	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))

	WithTraceContext(ctx, base).Info("traced")
	WithTraceContext(context.Background(), base).Info("untraced")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, span.SpanContext().TraceID().String(), entries[0].ContextMap()["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entries[0].ContextMap()["span_id"])
	assert.NotContains(t, entries[1].ContextMap(), "trace_id")
}
