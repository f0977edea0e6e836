package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cortex-prime/agentcore"

// NewProvider builds a real SDK TracerProvider for the given service name and
// installs it as the global provider, so spans created by NewTracer are
// recorded and sampled by the SDK instead of going to otel's built-in no-op
// implementation. It has no exporter wired in; callers that need spans to
// leave the process should add one (e.g. otlptrace) and pass it in via
// sdktrace.WithBatcher before calling otel.SetTracerProvider themselves.
func NewProvider(serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return provider, nil
}

// Tracer wraps the otel tracer with the two span shapes the scheduler and
// controller need: one per iteration, one per action.
type Tracer struct {
	tr trace.Tracer
}

// NewTracer returns a Tracer backed by the global otel TracerProvider. Tests
// that don't configure a provider get otel's built-in no-op tracer, so
// spans are always safe to create.
func NewTracer() *Tracer {
	return &Tracer{tr: otel.Tracer(tracerName)}
}

// StartIteration opens a span covering one iteration's stream → parse →
// execute → decide cycle.
func (t *Tracer) StartIteration(ctx context.Context, executionID string, iteration int) (context.Context, trace.Span) {
	return t.tr.Start(ctx, "iteration",
		trace.WithAttributes(
			attribute.String("cortex.execution_id", executionID),
			attribute.Int("cortex.iteration", iteration),
		),
	)
}

// StartAction opens a child span for one action's dispatch.
func (t *Tracer) StartAction(ctx context.Context, kind, target, mode string) (context.Context, trace.Span) {
	return t.tr.Start(ctx, "action",
		trace.WithAttributes(
			attribute.String("cortex.action.kind", kind),
			attribute.String("cortex.action.target", target),
			attribute.String("cortex.action.mode", mode),
		),
	)
}

// EndAction records the action's terminal status on its span before ending
// it.
func EndAction(span trace.Span, status string) {
	span.SetAttributes(attribute.String("cortex.action.status", status))
	span.End()
}
