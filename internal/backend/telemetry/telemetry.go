// Package telemetry configures OpenTelemetry tracing.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/jo-hoe/designcase"

type Config struct {
	OTLPEndpoint string
	ServiceName  string
	Insecure     bool
	SampleRate   float64
}

// TracerProvider wraps the SDK provider; without an endpoint it hands out a noop tracer
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

func NewTracerProvider(ctx context.Context, cfg Config) (*TracerProvider, error) {
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: noop.NewTracerProvider().Tracer(instrumentationName)}, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "designcase"
	}
	if cfg.SampleRate <= 0 || cfg.SampleRate > 1.0 {
		cfg.SampleRate = 1.0
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{provider: provider, tracer: provider.Tracer(instrumentationName)}, nil
}

// NewTestTracerProvider records spans synchronously into exporter
func NewTestTracerProvider(exporter sdktrace.SpanExporter) *TracerProvider {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return &TracerProvider{provider: provider, tracer: provider.Tracer(instrumentationName)}
}

func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}
