// Package telemetry wires OpenTelemetry tracing, metrics and logs for the
// exchange service.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultMetricsInterval = 60 * time.Second

// Settings describes the collector and the service identity.
type Settings struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	ServiceVersion    string
	Environment       string
	// SamplingRatio is the share of traces kept, 0..1.
	SamplingRatio   float64
	MetricsInterval time.Duration
}

// Providers owns the trace, metric and log pipelines. All fields are nil
// when telemetry is disabled; the global no-op providers are used then.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meters *sdkmetric.MeterProvider
	Logs   *sdklog.LoggerProvider

	settings Settings
	logger   *zap.Logger
}

// Setup builds the OTLP/gRPC pipelines and installs them globally.
func Setup(ctx context.Context, s Settings, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Providers{settings: s, logger: logger}
	if !s.Enabled {
		logger.Info("Telemetry disabled")
		return p, nil
	}

	res, err := newResource(s.ServiceName, s.ServiceVersion, s.Environment)
	if err != nil {
		return nil, err
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.CollectorEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(s.CollectorEndpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(s.CollectorEndpoint)}
	if s.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	spanExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	logExporter, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}

	interval := s.MetricsInterval
	if interval <= 0 {
		interval = defaultMetricsInterval
	}

	p.Tracer = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(Sampler(s.SamplingRatio))),
	)
	p.Meters = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
	)
	p.Logs = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)

	otel.SetTracerProvider(p.Tracer)
	otel.SetMeterProvider(p.Meters)
	global.SetLoggerProvider(p.Logs)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Telemetry initialized",
		zap.String("collector_endpoint", s.CollectorEndpoint),
		zap.Float64("sampling_ratio", s.SamplingRatio),
		zap.Duration("metrics_interval", interval),
		zap.String("service_name", s.ServiceName),
	)
	return p, nil
}

// Sampler maps a ratio to a sampler; ratios outside (0,1) keep all or nothing.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}

// Enabled reports whether pipelines were built.
func (p *Providers) Enabled() bool {
	return p != nil && p.Tracer != nil
}

// Meter returns a meter from the configured provider, or from the global
// (no-op) provider when telemetry is disabled.
func (p *Providers) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if p == nil || p.Meters == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return p.Meters.Meter(name, opts...)
}

// TracerProvider returns the provider spans should be created with.
func (p *Providers) TracerProvider() trace.TracerProvider {
	if p == nil || p.Tracer == nil {
		return otel.GetTracerProvider()
	}
	return p.Tracer
}

// BridgeLogger tees base into the OTLP log pipeline at level and above.
// base is returned unchanged when logs are not exported.
func (p *Providers) BridgeLogger(base *zap.Logger, level zapcore.Level) *zap.Logger {
	if p == nil || p.Logs == nil {
		return base
	}
	otelCore := otelzap.NewCore(p.settings.ServiceName, otelzap.WithLoggerProvider(p.Logs))
	leveled, err := zapcore.NewIncreaseLevelCore(otelCore, level)
	if err != nil {
		leveled = otelCore
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, leveled)
	}))
}

// Shutdown flushes and stops every pipeline.
func (p *Providers) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if err := p.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider: %w", err))
	}
	if err := p.Meters.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider: %w", err))
	}
	if err := p.Logs.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("logger provider: %w", err))
	}
	err := errors.Join(errs...)
	if err != nil {
		p.logger.Error("Telemetry shutdown incomplete", zap.Error(err))
	}
	return err
}

// newResource describes the service in exported telemetry.
func newResource(name, version, environment string) (*resource.Resource, error) {
	if version == "" {
		version = "dev"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceVersion(version),
	}
	if environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
