package event_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tradesys/pulse/pkg/pulse/event"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := map[string]any{
		"symbol": "BTC-USD",
		"qty":    0.25,
		"levels": map[string]any{"stop": 61000.5, "target": 64250.0},
		"maker":  false,
	}

	original, err := event.New(
		event.TypeOrderSubmitted,
		"sig_roundtrip",
		payload,
		event.WithSource("executor"),
		event.WithTimestamp(time.Date(2026, 2, 1, 9, 15, 30, 250000000, time.UTC)),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := original.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if strings.ContainsRune(string(data), '\n') {
		t.Error("encoded envelope must be a single line")
	}

	decoded, err := event.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// Every field reproduced
	if decoded.Type != original.Type {
		t.Errorf("type: expected %s, got %s", original.Type, decoded.Type)
	}
	if decoded.CorrelationID != original.CorrelationID {
		t.Errorf("correlation: expected %s, got %s", original.CorrelationID, decoded.CorrelationID)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("timestamp: expected %v, got %v", original.Timestamp, decoded.Timestamp)
	}
	if decoded.Source != original.Source {
		t.Errorf("source: expected %s, got %s", original.Source, decoded.Source)
	}
	if decoded.SchemaVersion != original.SchemaVersion {
		t.Errorf("schema version: expected %s, got %s", original.SchemaVersion, decoded.SchemaVersion)
	}
	if decoded.ID != original.ID {
		t.Errorf("id: expected %s, got %s", original.ID, decoded.ID)
	}
	if decoded.Payload["symbol"] != "BTC-USD" {
		t.Errorf("payload symbol: got %v", decoded.Payload["symbol"])
	}

	// Identity survives the round trip: recomputing from decoded fields
	// must match the id computed at creation.
	recomputed, err := decoded.RecomputeID()
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if recomputed != original.ID {
		t.Errorf("recomputed id %s does not match original %s", recomputed, original.ID)
	}
}

func TestDecodeWireFieldNames(t *testing.T) {
	line := `{"event_type":"SIGNAL","correlation_id":"sig_wire","timestamp":` +
		`"2026-02-01T14:30:00.5Z","payload":{"symbol":"SOL-USD"},"source":"scanner",` +
		`"schema_version":"1","event_id":"abcdef0123456789"}`

	evt, err := event.Decode([]byte(line))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if evt.Type != event.TypeSignal {
		t.Errorf("expected SIGNAL, got %s", evt.Type)
	}
	if evt.CorrelationID != "sig_wire" {
		t.Errorf("expected sig_wire, got %s", evt.CorrelationID)
	}
	want := time.Date(2026, 2, 1, 14, 30, 0, 500000000, time.UTC)
	if !evt.Timestamp.Equal(want) {
		t.Errorf("expected %v, got %v", want, evt.Timestamp)
	}
	if evt.Payload["symbol"] != "SOL-USD" {
		t.Errorf("expected SOL-USD, got %v", evt.Payload["symbol"])
	}
	if evt.Source != "scanner" {
		t.Errorf("expected scanner, got %s", evt.Source)
	}
	if evt.ID != "abcdef0123456789" {
		t.Errorf("expected stored id kept as-is, got %s", evt.ID)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	if _, err := event.Decode([]byte(`{"event_type":"SIGNAL"`)); err == nil {
		t.Error("expected error for truncated JSON")
	}

	if _, err := event.Decode([]byte(`not json at all`)); err == nil {
		t.Error("expected error for non-JSON input")
	}

	// Valid JSON that is not an envelope
	_, err := event.Decode([]byte(`{"foo":"bar"}`))
	if !errors.Is(err, event.ErrEmptyType) {
		t.Errorf("expected ErrEmptyType, got %v", err)
	}
}
