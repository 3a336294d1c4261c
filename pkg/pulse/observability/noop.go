package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordPublish does nothing.
func (NoopMetrics) RecordPublish(_ context.Context, _, _ string) {}

// RecordDelivery does nothing.
func (NoopMetrics) RecordDelivery(_ context.Context, _, _ string, _ time.Duration, _ error) {}

// RecordDrop does nothing.
func (NoopMetrics) RecordDrop(_ context.Context, _, _ string) {}

// RecordJournalWrite does nothing.
func (NoopMetrics) RecordJournalWrite(_ context.Context, _ int64, _ error) {}

// RecordPoll does nothing.
func (NoopMetrics) RecordPoll(_ context.Context, _ int, _ time.Duration) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
// We use the OTel noop package for a proper no-op span implementation.
var noopSpan = noop.Span{}

// StartDispatchSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartDispatchSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartPollSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartPollSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
