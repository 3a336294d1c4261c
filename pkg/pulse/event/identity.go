package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// idHashBytes is how much of the SHA-256 digest the id keeps: 8 bytes,
// 16 hex characters. Enough to deduplicate and grep for; not a
// collision-resistance guarantee.
const idHashBytes = 8

var idSeparator = []byte{'|'}

// ComputeID derives the deterministic content id of an envelope:
//
//	hex(sha256(type | correlation_id | RFC3339Nano-UTC ts | JCS(payload)))[:16]
//
// Equal inputs always produce equal ids, including payload maps that hold
// the same key/value pairs in different insertion order.
func ComputeID(t Type, correlationID string, ts time.Time, payload map[string]any) (string, error) {
	canonical, err := canonicalPayload(payload)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(t))
	h.Write(idSeparator)
	h.Write([]byte(correlationID))
	h.Write(idSeparator)
	h.Write([]byte(ts.UTC().Format(time.RFC3339Nano)))
	h.Write(idSeparator)
	h.Write(canonical)

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:idHashBytes]), nil
}

// canonicalPayload serializes the payload in RFC 8785 canonical form:
// keys sorted, canonical number formatting, no HTML escaping. A nil
// payload canonicalizes as JSON null.
func canonicalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte("null"), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return canonical, nil
}
