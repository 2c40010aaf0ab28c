package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider builds an SDK tracer provider for the named service. The
// core ships no exporter by default (spec §6 names no tracing backend); a
// deployer registers one with sdktrace.WithBatcher before calling Start, or
// leaves the default no-op span processor in place.
func NewTracerProvider(serviceName string) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(sdktrace.WithResource(res))
}

// Tracer returns the named tracer from the global otel provider. Components
// call this instead of holding their own trace.Tracer field, so a collaborator
// can install a real provider via otel.SetTracerProvider without threading it
// through every constructor.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan is a thin wrapper kept so call sites read like the logger and
// metrics calls alongside them instead of importing the trace API directly.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}
