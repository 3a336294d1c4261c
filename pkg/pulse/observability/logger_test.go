package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf    *bytes.Buffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}

	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}

	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	enc := json.NewEncoder(h.buf)
	return enc.Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)+len(attrs)),
		groups: h.groups,
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	return &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds component and process identity", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "journal", "executor", 4242)
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "journal", record["component"])
		assert.Equal(t, "executor", record["process_name"])
		assert.Equal(t, float64(4242), record["process_id"]) // JSON decodes ints as float64
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		enriched := EnrichLogger(nil, "bus", "strategy", 1)
		assert.Nil(t, enriched)
	})
}

func TestLogPublish(t *testing.T) {
	t.Run("logs at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogPublish(logger, "SIGNAL", "abc123", "sig_1", 7)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "event published", record["msg"])
		assert.Equal(t, "SIGNAL", record["event_type"])
		assert.Equal(t, "abc123", record["event_id"])
		assert.Equal(t, "sig_1", record["correlation_id"])
		assert.Equal(t, float64(7), record["queue_depth"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogPublish(nil, "SIGNAL", "id", "corr", 0)
		})
	})
}

func TestLogDrop(t *testing.T) {
	t.Run("logs at WARN level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogDrop(logger, "FILL", "def456", "queue_full")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "event dropped", record["msg"])
		assert.Equal(t, "FILL", record["event_type"])
		assert.Equal(t, "def456", record["event_id"])
		assert.Equal(t, "queue_full", record["reason"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDrop(nil, "FILL", "id", "queue_full")
		})
	})
}

func TestLogHandlerError(t *testing.T) {
	t.Run("logs at ERROR level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)
		testErr := errors.New("position lookup failed")

		LogHandlerError(logger, "risk-monitor", "DECISION", "a1b2", testErr)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "handler failed", record["msg"])
		assert.Equal(t, "risk-monitor", record["handler"])
		assert.Equal(t, "DECISION", record["event_type"])
		assert.Equal(t, "a1b2", record["event_id"])
		assert.Equal(t, "position lookup failed", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogHandlerError(nil, "h", "t", "id", errors.New("err"))
		})
	})
}

func TestLogJournalWrite(t *testing.T) {
	t.Run("logs seq and size at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogJournalWrite(logger, "/tmp/journal_20260201.jsonl", 17, 342)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "journal line written", record["msg"])
		assert.Equal(t, "/tmp/journal_20260201.jsonl", record["path"])
		assert.Equal(t, float64(17), record["seq"])
		assert.Equal(t, float64(342), record["size_bytes"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogJournalWrite(nil, "path", 1, 10)
		})
	})
}

func TestLogJournalWriteError(t *testing.T) {
	t.Run("logs at WARN level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)
		testErr := errors.New("disk full")

		LogJournalWriteError(logger, "/data/journal_20260201.jsonl", testErr)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "journal write failed", record["msg"])
		assert.Equal(t, "/data/journal_20260201.jsonl", record["path"])
		assert.Equal(t, "disk full", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogJournalWriteError(nil, "path", errors.New("err"))
		})
	})
}

func TestLogPollBatch(t *testing.T) {
	t.Run("logs batch outcome at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogPollBatch(logger, "/data/journal_20260201.jsonl", 12, 9, 3.5)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "journal poll completed", record["msg"])
		assert.Equal(t, float64(12), record["lines"])
		assert.Equal(t, float64(9), record["delivered"])
		assert.Equal(t, 3.5, record["duration_ms"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogPollBatch(nil, "path", 0, 0, 0)
		})
	})
}

func TestLogDecodeSkip(t *testing.T) {
	t.Run("logs offset at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)
		testErr := errors.New("unexpected end of JSON input")

		LogDecodeSkip(logger, "/data/journal_20260201.jsonl", 1024, testErr)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "journal line skipped", record["msg"])
		assert.Equal(t, float64(1024), record["offset"])
		assert.Equal(t, "unexpected end of JSON input", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDecodeSkip(nil, "path", 0, errors.New("err"))
		})
	})
}

func TestLogDegraded(t *testing.T) {
	t.Run("logs reason at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogDegraded(logger, "HEALTH", "no_sink")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "publish skipped", record["msg"])
		assert.Equal(t, "HEALTH", record["event_type"])
		assert.Equal(t, "no_sink", record["reason"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDegraded(nil, "HEALTH", "disabled")
		})
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(10 * time.Millisecond)
	elapsed := done()

	assert.GreaterOrEqual(t, elapsed, float64(5))
	assert.Less(t, elapsed, float64(5000))
}
