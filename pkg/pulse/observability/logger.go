// Package observability provides production-grade observability features
// for pulse: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every logging helper accepts a nil logger and returns early, so callers
// never guard call sites.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds pulse delivery context to a logger.
// Returns a new logger with component, process_name, and process_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "journal", "executor", os.Getpid())
//	enriched.Info("reader started") // includes component, process_name, process_id
func EnrichLogger(logger *slog.Logger, component, processName string, processID int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("component", component),
		slog.String("process_name", processName),
		slog.Int("process_id", processID),
	)
}

// LogPublish logs an accepted publish on the hot path.
func LogPublish(logger *slog.Logger, eventType, eventID, correlationID string, queueDepth int) {
	if logger == nil {
		return
	}
	logger.Debug("event published",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("correlation_id", correlationID),
		slog.Int("queue_depth", queueDepth),
	)
}

// LogDrop logs an event discarded under backpressure or dedup.
func LogDrop(logger *slog.Logger, eventType, eventID, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("event dropped",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("reason", reason),
	)
}

// LogHandlerError logs a subscriber failure surfaced to the dead-letter list.
func LogHandlerError(logger *slog.Logger, handler, eventType, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler failed",
		slog.String("handler", handler),
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogJournalWrite logs a successful journal append.
func LogJournalWrite(logger *slog.Logger, path string, seq uint64, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("journal line written",
		slog.String("path", path),
		slog.Uint64("seq", seq),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogJournalWriteError logs a journal append failure (non-fatal).
func LogJournalWriteError(logger *slog.Logger, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// LogPollBatch logs the outcome of one journal poll.
func LogPollBatch(logger *slog.Logger, path string, lines, delivered int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("journal poll completed",
		slog.String("path", path),
		slog.Int("lines", lines),
		slog.Int("delivered", delivered),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDecodeSkip logs a malformed journal line being skipped.
func LogDecodeSkip(logger *slog.Logger, path string, offset int64, err error) {
	if logger == nil {
		return
	}
	logger.Debug("journal line skipped",
		slog.String("path", path),
		slog.Int64("offset", offset),
		slog.String("error", err.Error()),
	)
}

// LogDegraded logs a publish silently skipped because no sink is attached
// or publishing is disabled.
func LogDegraded(logger *slog.Logger, eventType, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("publish skipped",
		slog.String("event_type", eventType),
		slog.String("reason", reason),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
