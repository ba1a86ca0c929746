// Package trace wires OpenTelemetry tracing for the call path. Spans
// cover webhook handling, generation turns, model round trips and tool
// executions; the exporter is selected through the environment so local
// runs and production share the same instrumentation.
package trace

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies this module's tracer.
const TracerName = "github.com/estateline/estateline"

var (
	mu             sync.RWMutex
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
)

// Config selects the exporter and describes the service.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Environment is the deployment environment (development, staging,
	// production).
	Environment string
	// ExporterType is "stdout", "otlp" or "none".
	ExporterType string
	// OTLPEndpoint is the gRPC collector endpoint for the otlp exporter.
	OTLPEndpoint string
	// SamplingRate is the fraction of traces to sample, 0.0 to 1.0.
	SamplingRate float64
}

// DefaultConfig reads the exporter selection from the environment.
// Tracing stays off unless TRACE_EXPORTER says otherwise.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "estateline",
		ServiceVersion: "0.1.0",
		Environment:    envOr("ENVIRONMENT", "development"),
		ExporterType:   envOr("TRACE_EXPORTER", "none"),
		OTLPEndpoint:   envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		SamplingRate:   1.0,
	}
}

// Initialize installs the global tracer provider. With exporter "none"
// nothing is installed and every span stays a no-op.
func Initialize(ctx context.Context, cfg *Config) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider != nil {
		return fmt.Errorf("tracing already initialized")
	}
	if cfg.ExporterType == "none" {
		return nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return err
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
		return fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)
	tracer = tracerProvider.Tracer(TracerName)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func newExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// Shutdown flushes pending spans and uninstalls the provider.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider == nil {
		return nil
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	tracerProvider = nil
	tracer = nil
	return nil
}

// GetTracer returns the installed tracer, or a no-op one before
// Initialize has run.
func GetTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()

	if tracer == nil {
		return otel.Tracer(TracerName)
	}
	return tracer
}

// StartSpan starts a span on the module tracer.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, spanName, opts...)
}

// RecordError records err on the span and marks it failed. Nil errors
// are ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
