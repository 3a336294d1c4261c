// Package publisher is the typed facade trading components emit pulse
// events through.
//
// # Overview
//
// Components never build envelopes by hand. They call one facade method
// per event kind (SignalReceived, Decision, OrderFill, ...), which stamps
// the configured source, applies the payload convention for that kind,
// and hands the envelope to the sink. The sink is anything that accepts
// envelopes: a bus for same-process consumers, a journal for other
// processes, or a MultiSink carrying both delivery paths at once.
//
//	pub := publisher.New(publisher.MultiSink{b, j}, publisher.Config{Source: "executor"})
//	corrID, _ := pub.SignalReceived(ctx, "BTCUSDT", "LONG", "breakout", nil)
//	pub.SignalScored(ctx, corrID, "BTCUSDT", 0.87, "ACCEPT")
//	pub.Decision(ctx, corrID, "BTCUSDT", "BUY", "score above threshold")
//
// # Correlation Chains
//
// The first event of a causal chain mints a correlation id (SignalReceived
// returns it; PositionSnapshot and the standalone kinds mint their own)
// and every later event of the chain must carry it. Consumers group by
// correlation_id to reconstruct the signal → decision → order → fill
// story across processes.
//
// # Fail-Open Telemetry
//
// Publishing is deliberately fail-open, the opposite of the host's
// fail-closed trading policy: with no sink attached or after Disable,
// every method logs at Debug and returns nil, and sink errors are counted
// and returned but safe to ignore. LatencyP95 exposes the recent cost of
// publishing so an operator can spot telemetry dragging on the hot path.
package publisher
