package event

import (
	"errors"
	"maps"
	"time"
)

// Type tags an envelope with the kind of fact it records. The set is open:
// any non-empty string is a valid type, the constants below cover the
// trading flows pulse ships conventions for.
type Type string

// Well-known event types.
const (
	TypeSignal           Type = "SIGNAL"
	TypeSignalScore      Type = "SIGNAL_SCORE"
	TypeDecision         Type = "DECISION"
	TypeOrderIntent      Type = "ORDER_INTENT"
	TypeOrderSubmitted   Type = "ORDER_SUBMITTED"
	TypeOrderFill        Type = "FILL"
	TypePositionSnapshot Type = "POSITION_SNAPSHOT"
	TypePositionAnomaly  Type = "POSITION_ANOMALY"
	TypeClose            Type = "CLOSE"
	TypeRiskStop         Type = "RISK_STOP"
	TypeStopLossFailure  Type = "STOPLOSS_FAILURE"
	TypeHealth           Type = "HEALTH"
	TypePanic            Type = "PANIC"
)

// DefaultSchemaVersion marks envelopes built without an explicit version.
const DefaultSchemaVersion = "1"

var (
	// ErrEmptyType is returned when an envelope is built or decoded
	// without an event type.
	ErrEmptyType = errors.New("event type is empty")

	// ErrEmptyCorrelationID is returned when an envelope is built without
	// a correlation id.
	ErrEmptyCorrelationID = errors.New("correlation id is empty")
)

// Envelope is the canonical event record. Field order matches the wire
// layout; see the package documentation for the identity rule.
//
// Envelopes are immutable once created. The payload map is shallow-copied
// at construction and must be treated as read-only afterwards.
type Envelope struct {
	Type          Type           `json:"event_type"`
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Payload       map[string]any `json:"payload"`
	Source        string         `json:"source"`
	SchemaVersion string         `json:"schema_version"`
	ID            string         `json:"event_id"`
}

// Option configures envelope creation.
type Option func(*envelopeConfig)

type envelopeConfig struct {
	timestamp     time.Time
	source        string
	schemaVersion string
}

// WithTimestamp sets a specific timestamp (default: time.Now in UTC).
// The value is normalized to UTC before it contributes to the id.
func WithTimestamp(t time.Time) Option {
	return func(cfg *envelopeConfig) {
		cfg.timestamp = t
	}
}

// WithSource names the component that produced the envelope.
func WithSource(source string) Option {
	return func(cfg *envelopeConfig) {
		cfg.source = source
	}
}

// WithSchemaVersion sets the payload schema version marker.
func WithSchemaVersion(v string) Option {
	return func(cfg *envelopeConfig) {
		cfg.schemaVersion = v
	}
}

// New creates an envelope and derives its content id. The payload is
// shallow-copied; a nil payload is allowed and hashes as JSON null.
func New(t Type, correlationID string, payload map[string]any, opts ...Option) (*Envelope, error) {
	if t == "" {
		return nil, ErrEmptyType
	}
	if correlationID == "" {
		return nil, ErrEmptyCorrelationID
	}

	cfg := envelopeConfig{
		timestamp:     time.Now().UTC(),
		schemaVersion: DefaultSchemaVersion,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Envelope{
		Type:          t,
		CorrelationID: correlationID,
		Timestamp:     cfg.timestamp.UTC(),
		Payload:       maps.Clone(payload),
		Source:        cfg.source,
		SchemaVersion: cfg.schemaVersion,
	}

	id, err := ComputeID(e.Type, e.CorrelationID, e.Timestamp, e.Payload)
	if err != nil {
		return nil, err
	}
	e.ID = id
	return e, nil
}

// RecomputeID derives the id from the envelope's current content without
// modifying the envelope. Auditors compare it against the stored ID to
// verify a journaled envelope still matches what was hashed at creation.
func (e *Envelope) RecomputeID() (string, error) {
	return ComputeID(e.Type, e.CorrelationID, e.Timestamp, e.Payload)
}
