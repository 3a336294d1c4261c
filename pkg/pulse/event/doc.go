// Package event defines the canonical event envelope shared by every pulse
// delivery path.
//
// # Overview
//
// An Envelope is an immutable record of one fact: a typed tag, the
// correlation id of the causal chain it belongs to, a UTC timestamp, the
// producing component, a schema version marker, and an opaque payload map.
// Envelopes are created once at publish time and never mutated afterwards;
// the in-process bus garbage-collects them after dispatch while the journal
// retains them on disk.
//
// # Identity
//
// Every envelope carries a deterministic id derived from its content:
//
//	id = hex(sha256(type | correlation_id | RFC3339Nano-UTC timestamp | JCS(payload)))[:16]
//
// The payload is canonicalized with RFC 8785 (JSON Canonicalization Scheme)
// before hashing, so two envelopes built from payload maps with identical
// key/value pairs always share an id regardless of map iteration order.
// The 16-hex-character prefix is a deduplication and log-readability aid,
// not a collision-resistance or security guarantee.
//
// # Wire Format
//
// Encode/Decode round-trip an envelope through a single JSON object:
//
//	{"event_type":"SIGNAL","correlation_id":"sig_1","timestamp":"...",
//	 "payload":{...},"source":"strategy","schema_version":"1","event_id":"..."}
//
// Decoding reproduces every field; RecomputeID lets auditors verify that a
// stored envelope still matches its content.
//
// # Payload Conventions
//
// The payload shape is a convention per event type owned by producers (the
// publisher package defines the trading conventions); this package never
// inspects it beyond canonical serialization.
package event
