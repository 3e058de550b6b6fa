package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/straja-ai/placeholder"

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
	Insecure bool
}

// Provider wires tracer/meter providers and the detection instruments.
type Provider struct {
	Enabled        bool
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	detectRequests    metric.Int64Counter
	detectDuration    metric.Float64Histogram
	embeddingDuration metric.Float64Histogram
	candidates        metric.Int64Histogram

	shutdown []func(context.Context) error
}

// NewProvider configures OTLP exporters. When disabled it returns no-op
// providers so callers never branch on telemetry being on.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.Enabled {
		return Noop(), nil
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	logger.Info("telemetry enabled; upload warnings are expected when no collector is listening",
		"protocol", protocol, "endpoint", cfg.Endpoint)

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	var (
		spanExp   sdktrace.SpanExporter
		metricExp sdkmetric.Exporter
	)
	switch protocol {
	case "", "grpc":
		traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		if spanExp, err = otlptracegrpc.New(ctx, traceOpts...); err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		if metricExp, err = otlpmetricgrpc.New(ctx, metricOpts...); err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
	case "http":
		traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		if spanExp, err = otlptracehttp.New(ctx, traceOpts...); err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		if metricExp, err = otlpmetrichttp.New(ctx, metricOpts...); err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("telemetry protocol must be grpc or http, got %q", cfg.Protocol)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(spanExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	p := FromProviders(tp, mp)
	p.shutdown = []func(context.Context) error{tp.Shutdown, mp.Shutdown}
	return p, nil
}

// Noop returns a provider that records nothing.
func Noop() *Provider {
	p := FromProviders(tracenoop.NewTracerProvider(), noop.NewMeterProvider())
	p.Enabled = false
	return p
}

// FromProviders builds a Provider on existing SDK providers.
func FromProviders(tp trace.TracerProvider, mp metric.MeterProvider) *Provider {
	p := &Provider{
		Enabled:        true,
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer(instrumentationName),
		meter:          mp.Meter(instrumentationName),
	}
	p.initInstruments()
	return p
}

func (p *Provider) initInstruments() {
	// Instrument creation errors leave a nil instrument; record helpers skip those.
	p.detectRequests, _ = p.meter.Int64Counter("placeholder_detect_requests_total",
		metric.WithDescription("Detection calls by outcome and method."))
	p.detectDuration, _ = p.meter.Float64Histogram("placeholder_detect_duration_ms",
		metric.WithUnit("ms"))
	p.embeddingDuration, _ = p.meter.Float64Histogram("placeholder_embedding_duration_ms",
		metric.WithUnit("ms"))
	p.candidates, _ = p.meter.Int64Histogram("placeholder_candidates",
		metric.WithDescription("Candidates per detection call."))
}

func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

func (p *Provider) TracerProvider() trace.TracerProvider {
	if p == nil {
		return tracenoop.NewTracerProvider()
	}
	return p.tracerProvider
}

func (p *Provider) MeterProvider() metric.MeterProvider {
	if p == nil {
		return noop.NewMeterProvider()
	}
	return p.meterProvider
}

// Shutdown flushes providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var firstErr error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartDetect opens the placeholder.detect span.
func (p *Provider) StartDetect(ctx context.Context, attrs map[string]any) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "placeholder.detect", trace.WithAttributes(SafeAttributes(attrs)...))
}

// RecordDetection emits the per-call counter and histograms.
func (p *Provider) RecordDetection(ctx context.Context, outcome, method string, durMs float64, candidates int) {
	if p == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("method", method),
	)
	if p.detectRequests != nil {
		p.detectRequests.Add(ctx, 1, labels)
	}
	if p.detectDuration != nil {
		p.detectDuration.Record(ctx, durMs, labels)
	}
	if p.candidates != nil {
		p.candidates.Record(ctx, int64(candidates))
	}
}

// RecordEmbedding records one embedder call.
func (p *Provider) RecordEmbedding(ctx context.Context, backend string, durMs float64, failed bool) {
	if p == nil || p.embeddingDuration == nil {
		return
	}
	p.embeddingDuration.Record(ctx, durMs, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.Bool("error", failed),
	))
}
