package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the pulse tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("pulse")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartDispatchSpan starts a span covering one event's fan-out to
	// in-process handlers.
	StartDispatchSpan(ctx context.Context, eventType, eventID string) (context.Context, trace.Span)

	// StartPollSpan starts a span covering one journal poll.
	StartPollSpan(ctx context.Context, path string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartDispatchSpan starts a span covering one event's handler fan-out.
func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, eventType, eventID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pulse.dispatch",
		trace.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.String("event.id", eventID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPollSpan starts a span covering one journal poll.
func (m *otelSpanManager) StartPollSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pulse.journal.poll",
		trace.WithAttributes(
			attribute.String("journal.path", path),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Convenience functions that operate on the global tracer.
// These are useful for simple cases where you don't need the interface.

// StartDispatchSpan starts a span covering one event's handler fan-out.
// Uses the global OTel tracer.
func StartDispatchSpan(ctx context.Context, eventType, eventID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pulse.dispatch",
		trace.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.String("event.id", eventID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPollSpan starts a span covering one journal poll.
// Uses the global OTel tracer.
func StartPollSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pulse.journal.poll",
		trace.WithAttributes(
			attribute.String("journal.path", path),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
