package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pulse delivery metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records an accepted publish on the named sink
	// ("bus" or "journal").
	RecordPublish(ctx context.Context, eventType, sink string)

	// RecordDelivery records one handler invocation with its duration and
	// error status.
	RecordDelivery(ctx context.Context, eventType, handler string, duration time.Duration, err error)

	// RecordDrop records an event discarded under backpressure or dedup.
	RecordDrop(ctx context.Context, eventType, reason string)

	// RecordJournalWrite records a journal append and its size.
	RecordJournalWrite(ctx context.Context, sizeBytes int64, err error)

	// RecordPoll records one journal poll with the number of lines read.
	RecordPoll(ctx context.Context, lines int, duration time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	publishes       metric.Int64Counter
	deliveries      metric.Int64Counter
	deliveryLatency metric.Float64Histogram
	handlerErrors   metric.Int64Counter
	drops           metric.Int64Counter
	journalWrites   metric.Int64Counter
	journalErrors   metric.Int64Counter
	journalBytes    metric.Int64Histogram
	polls           metric.Int64Counter
	pollLines       metric.Int64Histogram
	pollLatency     metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("pulse")

	publishes, err := meter.Int64Counter("pulse.events.published",
		metric.WithDescription("Number of events accepted for delivery"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("pulse.events.delivered",
		metric.WithDescription("Number of handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLatency, err := meter.Float64Histogram("pulse.delivery.latency_ms",
		metric.WithDescription("Handler invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("pulse.handler.errors",
		metric.WithDescription("Number of handler invocations that returned an error"),
	)
	if err != nil {
		return nil, err
	}

	drops, err := meter.Int64Counter("pulse.events.dropped",
		metric.WithDescription("Number of events discarded before delivery"),
	)
	if err != nil {
		return nil, err
	}

	journalWrites, err := meter.Int64Counter("pulse.journal.writes",
		metric.WithDescription("Number of journal append attempts"),
	)
	if err != nil {
		return nil, err
	}

	journalErrors, err := meter.Int64Counter("pulse.journal.write_errors",
		metric.WithDescription("Number of failed journal appends"),
	)
	if err != nil {
		return nil, err
	}

	journalBytes, err := meter.Int64Histogram("pulse.journal.write_bytes",
		metric.WithDescription("Journal line size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	polls, err := meter.Int64Counter("pulse.journal.polls",
		metric.WithDescription("Number of journal polls"),
	)
	if err != nil {
		return nil, err
	}

	pollLines, err := meter.Int64Histogram("pulse.journal.poll_lines",
		metric.WithDescription("Lines consumed per journal poll"),
	)
	if err != nil {
		return nil, err
	}

	pollLatency, err := meter.Float64Histogram("pulse.journal.poll_latency_ms",
		metric.WithDescription("Journal poll latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		publishes:       publishes,
		deliveries:      deliveries,
		deliveryLatency: deliveryLatency,
		handlerErrors:   handlerErrors,
		drops:           drops,
		journalWrites:   journalWrites,
		journalErrors:   journalErrors,
		journalBytes:    journalBytes,
		polls:           polls,
		pollLines:       pollLines,
		pollLatency:     pollLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records an accepted publish.
func (m *otelMetrics) RecordPublish(ctx context.Context, eventType, sink string) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("sink", sink),
	))
}

// RecordDelivery records one handler invocation.
func (m *otelMetrics) RecordDelivery(ctx context.Context, eventType, handler string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
		attribute.String("handler", handler),
	}

	m.deliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.deliveryLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.handlerErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordDrop records a discarded event.
func (m *otelMetrics) RecordDrop(ctx context.Context, eventType, reason string) {
	m.drops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("reason", reason),
	))
}

// RecordJournalWrite records a journal append attempt.
func (m *otelMetrics) RecordJournalWrite(ctx context.Context, sizeBytes int64, err error) {
	m.journalWrites.Add(ctx, 1)
	if err != nil {
		m.journalErrors.Add(ctx, 1)
		return
	}
	m.journalBytes.Record(ctx, sizeBytes)
}

// RecordPoll records one journal poll.
func (m *otelMetrics) RecordPoll(ctx context.Context, lines int, duration time.Duration) {
	m.polls.Add(ctx, 1)
	m.pollLines.Record(ctx, int64(lines))
	m.pollLatency.Record(ctx, float64(duration.Milliseconds()))
}
