// Package journal provides durable, cross-process distribution of pulse
// envelopes through shared append-only files.
//
// # Overview
//
// Cooperating processes on one host agree on a directory; each process
// constructs its own Journal over it. Publish appends the envelope as one
// fsynced JSON line to today's journal_YYYYMMDD.jsonl, wrapped in an Entry
// carrying the writer's process id, name, and a per-writer sequence number
// that starts at 1 each process start and never skips. Poll tails the same
// file from a privately tracked byte offset and surfaces every line written
// by other processes, so readers lag writers by at most one poll interval.
//
//	j, _ := journal.New(journal.Config{Dir: "/var/lib/pulse"})
//	j.Subscribe(event.TypeOrderFill, journal.NamedHandler("pnl", onFill))
//	j.StartReader(ctx)
//	defer j.StopReader()
//
// # Cross-Process Contract
//
// No file locking is used. Correctness relies on each process being a
// single writer issuing one whole-line append+fsync per Publish (the
// Journal funnels concurrent Publish calls through an internal mutex), on
// O_APPEND atomicity for lines well under the pipe buffer size, and on
// read offsets staying private to each instance. Entries a process wrote
// itself are suppressed while polling, so a process never consumes its own
// telemetry. Ordering across writers is approximate: file append order,
// with ts_unix as an advisory timestamp only.
//
// # Failure Model
//
// This is fire-and-forget telemetry, not a transactional commit. Append
// failures are logged and counted and the error is returned for callers
// that care; the facade discards it. A malformed line encountered while
// polling is skipped and counted without aborting the batch, and a
// trailing line with no newline yet is left for the next poll. Handler
// errors and panics during poll dispatch are counted and logged, never
// propagated. Only construction can fail loudly, when the configured
// directory cannot be created or written.
//
// # Day Rotation
//
// Poll resolves "today" at call time, so a long-running reader moves to
// the new day's file on its own; lines appended to the old day after its
// last poll are not chased automatically. Callers needing cross-midnight
// continuity drain the previous day explicitly with PollFile or Replay
// and PathForDate. With a cursor.Store configured, offsets survive
// restarts; otherwise a fresh instance replays today's file from the
// start (or tails from the end with ReadFromLatest).
package journal
