// Package observability wires OpenTelemetry tracing and metrics around the
// persistence pipeline. Disabled by default; every method is safe on a nil
// or disabled provider so call sites never branch on telemetry state.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // gRPC, e.g. "localhost:4317"
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig keeps telemetry off unless an operator opts in.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "intake",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
		Insecure:       false,
	}
}

// Provider owns the trace and metric pipelines plus the dispatcher counters.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	logger         *slog.Logger

	appendCounter  metric.Int64Counter
	uploadCounter  metric.Int64Counter
	failureCounter metric.Int64Counter
}

// New creates a provider. With cfg.Enabled false the provider is a no-op.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := &Provider{
		config: cfg,
		logger: slog.Default().With("component", "observability"),
	}
	if !cfg.Enabled {
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: resource setup failed: %w", err)
	}

	if err := p.initTraces(ctx, res); err != nil {
		return nil, err
	}
	if err := p.initMetrics(ctx, res); err != nil {
		return nil, err
	}

	p.tracer = otel.Tracer("intake.pipeline",
		trace.WithInstrumentationVersion(cfg.ServiceVersion))

	meter := otel.Meter("intake.pipeline",
		metric.WithInstrumentationVersion(cfg.ServiceVersion))
	if err := p.initCounters(meter); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", cfg.ServiceName,
		"endpoint", cfg.OTLPEndpoint,
	)
	return p, nil
}

func (p *Provider) initTraces(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("observability: trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	return nil
}

func (p *Provider) initMetrics(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("observability: metric exporter: %w", err)
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initCounters(meter metric.Meter) error {
	var err error
	p.appendCounter, err = meter.Int64Counter("intake.rows.appended",
		metric.WithDescription("Tabular rows appended, by backend and outcome"))
	if err != nil {
		return fmt.Errorf("observability: counter setup: %w", err)
	}
	p.uploadCounter, err = meter.Int64Counter("intake.blobs.uploaded",
		metric.WithDescription("Blob uploads attempted, by outcome"))
	if err != nil {
		return fmt.Errorf("observability: counter setup: %w", err)
	}
	p.failureCounter, err = meter.Int64Counter("intake.sink.failures",
		metric.WithDescription("Sink write failures, by backend"))
	if err != nil {
		return fmt.Errorf("observability: counter setup: %w", err)
	}
	return nil
}

// StartSpan opens a span around one sink write. No-op when disabled.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if p == nil || p.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, name)
}

// RecordAppend counts one tabular append attempt.
func (p *Provider) RecordAppend(ctx context.Context, backend string, err error) {
	if p == nil || p.appendCounter == nil {
		return
	}
	ok := err == nil
	p.appendCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("backend", backend), attribute.Bool("ok", ok)))
	if !ok {
		p.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
	}
}

// RecordUpload counts one blob upload attempt.
func (p *Provider) RecordUpload(ctx context.Context, backend string, ok bool) {
	if p == nil || p.uploadCounter == nil {
		return
	}
	p.uploadCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("backend", backend), attribute.Bool("ok", ok)))
	if !ok {
		p.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
	}
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var firstErr error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
