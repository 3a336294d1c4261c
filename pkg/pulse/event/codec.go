package event

import (
	"encoding/json"
	"fmt"
)

// Encode serializes the envelope as a single JSON object with no trailing
// newline. Writers that need line framing append it themselves.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Decode parses a JSON-encoded envelope. Every field round-trips; the
// stored event_id is trusted as-is (use RecomputeID to verify it). Input
// that is valid JSON but not an envelope fails with ErrEmptyType.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" {
		return nil, ErrEmptyType
	}
	return &e, nil
}
