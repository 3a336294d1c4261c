// Package bus provides bounded in-process pub/sub distribution of pulse
// envelopes.
//
// # Overview
//
// A Bus owns one bounded FIFO queue and one dispatch loop. Producers call
// Publish (blocking) or TryPublish (drop-new under backpressure); the
// dispatch loop pops events in publish order and invokes every matching
// handler sequentially, concrete subscriptions before wildcard ones, each
// group in registration order.
//
//	b, _ := bus.New(bus.Config{QueueCapacity: 1024})
//	b.Subscribe(event.TypeSignal, bus.NamedHandler("scorer", scoreSignal))
//	b.SubscribeAll(bus.NamedHandler("audit", auditEvent))
//	go b.Run(ctx)
//	defer b.Stop()
//
// # Failure Isolation
//
// A handler error or panic is recovered, counted, logged, and recorded on
// the bounded dead-letter list; it never halts the remaining handlers for
// that event or the events behind it. Inspect recent failures with
// DeadLetters and aggregate counters with Stats.
//
// # Backpressure
//
// The queue never grows past QueueCapacity. Publish waits for space until
// the context is cancelled or the bus stops; TryPublish returns
// ErrQueueFull immediately and the event is dropped, counted, and reported
// through OnDrop. Events already queued when Stop is called are discarded.
//
// # Persistence and Dedup
//
// With PersistDir set, every envelope offered for delivery is appended as
// one JSON line to a per-type events_<TYPE>.jsonl file before the enqueue,
// a local at-least-once mirror useful for postmortems (the journal package
// is the durable cross-process path). The mirror may therefore hold an
// envelope that TryPublish then dropped. With DedupeTTL set, an envelope
// whose event_id was accepted within the TTL is silently dropped.
package bus
