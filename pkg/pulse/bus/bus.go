package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tradesys/pulse/pkg/pulse/event"
	"github.com/tradesys/pulse/pkg/pulse/observability"
)

// Wildcard subscribes a handler to every event type.
const Wildcard event.Type = "*"

// Defaults applied by New for zero Config fields.
const (
	DefaultQueueCapacity      = 1024
	DefaultDeadLetterCapacity = 256
	DefaultWaitTimeout        = 200 * time.Millisecond
)

// Config configures bus behavior.
type Config struct {
	// QueueCapacity bounds the publish queue.
	// Default: 1024
	QueueCapacity int

	// DeadLetterCapacity bounds the in-memory dead-letter list; when full,
	// the oldest entry is overwritten.
	// Default: 256
	DeadLetterCapacity int

	// WaitTimeout bounds each dispatch wait so a stop request is observed
	// promptly even when nothing is queued.
	// Default: 200ms
	WaitTimeout time.Duration

	// PersistDir, when set, appends every envelope offered for delivery to
	// a per-type JSONL file under this directory before it is enqueued.
	// Default: "" (disabled)
	PersistDir string

	// DedupeTTL, when positive, drops an envelope whose event_id was
	// already accepted within the TTL.
	// Default: 0 (disabled)
	DedupeTTL time.Duration

	// OnDrop is called when an event is discarded before delivery.
	// Reasons: "queue_full", "duplicate".
	OnDrop func(evt *event.Envelope, reason string)

	// OnError is called when a handler returns an error or panics.
	OnError func(evt *event.Envelope, handler string, err error)

	// Logger receives structured logs. nil disables logging.
	Logger *slog.Logger

	// Metrics receives delivery metrics. nil disables metrics.
	Metrics observability.MetricsRecorder
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Published     uint64 // events accepted onto the queue
	Delivered     uint64 // successful handler invocations
	Failed        uint64 // handler failures plus queue-full drops
	Dropped       uint64 // events discarded before delivery (full queue, duplicate)
	Persisted     uint64 // envelopes mirrored to the persist directory
	PersistFailed uint64 // persist appends that failed (non-fatal)
	QueueDepth    int    // events currently queued
	Subscribers   int    // registered handlers, wildcard included
	DeadLetters   int    // entries retained on the dead-letter list
}

// Bus is a bounded in-process pub/sub dispatcher. One Bus owns one FIFO
// queue and one dispatch loop; see the package documentation for the
// delivery and backpressure contract.
type Bus struct {
	cfg     Config
	metrics observability.MetricsRecorder

	queue chan *event.Envelope

	mu        sync.RWMutex
	byType    map[event.Type][]Handler
	wildcards []Handler

	dedupeMu    sync.Mutex
	dedupeCache map[string]time.Time

	dlq     *deadLetterRing
	persist *persister

	published     atomic.Uint64
	delivered     atomic.Uint64
	failed        atomic.Uint64
	dropped       atomic.Uint64
	persisted     atomic.Uint64
	persistFailed atomic.Uint64

	running atomic.Bool
	stopped atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a bus. The dispatch loop is not started; call Run or Start.
// Construction fails only for an unusable PersistDir.
func New(cfg Config) (*Bus, error) {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.DeadLetterCapacity <= 0 {
		cfg.DeadLetterCapacity = DefaultDeadLetterCapacity
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	b := &Bus{
		cfg:     cfg,
		metrics: metrics,
		queue:   make(chan *event.Envelope, cfg.QueueCapacity),
		byType:  make(map[event.Type][]Handler),
		dlq:     newDeadLetterRing(cfg.DeadLetterCapacity),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	if cfg.PersistDir != "" {
		p, err := newPersister(cfg.PersistDir)
		if err != nil {
			return nil, err
		}
		b.persist = p
	}

	if cfg.DedupeTTL > 0 {
		b.dedupeCache = make(map[string]time.Time)
		go b.cleanupDedupe()
	}

	return b, nil
}

// Subscribe registers a handler for one event type. Pass Wildcard to
// receive every event. Handlers run in registration order, concrete
// subscriptions before wildcard ones.
func (b *Bus) Subscribe(t event.Type, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if t == Wildcard {
		b.wildcards = append(b.wildcards, h)
		return nil
	}
	b.byType[t] = append(b.byType[t], h)
	return nil
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) error {
	return b.Subscribe(Wildcard, h)
}

// Unsubscribe removes every handler registered under the given name for
// the given type (or Wildcard).
func (b *Bus) Unsubscribe(t event.Type, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t == Wildcard {
		b.wildcards = removeByName(b.wildcards, name)
		return
	}
	kept := removeByName(b.byType[t], name)
	if len(kept) == 0 {
		delete(b.byType, t)
		return
	}
	b.byType[t] = kept
}

func removeByName(handlers []Handler, name string) []Handler {
	kept := handlers[:0]
	for _, h := range handlers {
		if h.Name() != name {
			kept = append(kept, h)
		}
	}
	return kept
}

// Publish enqueues an event, blocking while the queue is full until space
// frees up, the context is cancelled, or the bus stops. With PersistDir
// configured the envelope is appended to its per-type file before the
// enqueue, so the local mirror holds it ahead of the publish
// acknowledgment.
func (b *Bus) Publish(ctx context.Context, evt *event.Envelope) error {
	if b.stopped.Load() {
		return ErrBusStopped
	}
	if b.isDuplicate(evt) {
		b.dropDuplicate(ctx, evt)
		return nil
	}
	b.persistEvent(evt)

	select {
	case b.queue <- evt:
		b.accepted(ctx, evt)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stopCh:
		return ErrBusStopped
	}
}

// TryPublish enqueues an event without blocking. On a full queue the
// event is dropped, counted as failed, and ErrQueueFull is returned; the
// caller never stalls. With PersistDir configured the envelope hits the
// per-type file even when the enqueue is then dropped.
func (b *Bus) TryPublish(evt *event.Envelope) error {
	if b.stopped.Load() {
		return ErrBusStopped
	}
	ctx := context.Background()
	if b.isDuplicate(evt) {
		b.dropDuplicate(ctx, evt)
		return nil
	}
	b.persistEvent(evt)

	select {
	case b.queue <- evt:
		b.accepted(ctx, evt)
		return nil
	default:
		b.failed.Add(1)
		b.dropped.Add(1)
		observability.LogDrop(b.cfg.Logger, string(evt.Type), evt.ID, "queue_full")
		b.metrics.RecordDrop(ctx, string(evt.Type), "queue_full")
		if b.cfg.OnDrop != nil {
			b.cfg.OnDrop(evt, "queue_full")
		}
		return ErrQueueFull
	}
}

func (b *Bus) accepted(ctx context.Context, evt *event.Envelope) {
	b.recordAccepted(evt)
	b.published.Add(1)
	observability.LogPublish(b.cfg.Logger, string(evt.Type), evt.ID, evt.CorrelationID, len(b.queue))
	b.metrics.RecordPublish(ctx, string(evt.Type), "bus")
}

func (b *Bus) persistEvent(evt *event.Envelope) {
	if b.persist == nil {
		return
	}
	if _, err := b.persist.write(evt); err != nil {
		b.persistFailed.Add(1)
		observability.LogJournalWriteError(b.cfg.Logger, b.cfg.PersistDir, err)
		return
	}
	b.persisted.Add(1)
}

func (b *Bus) dropDuplicate(ctx context.Context, evt *event.Envelope) {
	b.dropped.Add(1)
	observability.LogDrop(b.cfg.Logger, string(evt.Type), evt.ID, "duplicate")
	b.metrics.RecordDrop(ctx, string(evt.Type), "duplicate")
	if b.cfg.OnDrop != nil {
		b.cfg.OnDrop(evt, "duplicate")
	}
}

// Run executes the dispatch loop on the calling goroutine until the
// context is cancelled or Stop is called. Each queued event is delivered
// to every matching handler sequentially; a handler error or panic is
// recorded and never halts dispatch. Returns ErrAlreadyRunning if a loop
// is already active.
func (b *Bus) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	b.run(ctx)
	return nil
}

// Start runs the dispatch loop in its own goroutine. Returns
// ErrAlreadyRunning if a loop is already active.
func (b *Bus) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go b.run(ctx)
	return nil
}

func (b *Bus) run(ctx context.Context) {
	defer close(b.doneCh)

	timer := time.NewTimer(b.cfg.WaitTimeout)
	defer timer.Stop()

	for {
		if b.stopped.Load() {
			return
		}

		select {
		case evt := <-b.queue:
			b.dispatch(ctx, evt)
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			// Nothing queued within the wait slice; loop back so a stop
			// request is observed.
		}
		timer.Reset(b.cfg.WaitTimeout)
	}
}

// Stop requests a cooperative shutdown: the loop exits after finishing
// the in-flight dispatch, and events still queued are discarded. The bus
// accepts no further publishes. Idempotent.
func (b *Bus) Stop() {
	if !b.stopped.CompareAndSwap(false, true) {
		return
	}
	close(b.stopCh)
	if b.persist != nil {
		b.persist.close()
	}
}

// Stopped returns a channel closed when the dispatch loop exits. If Run
// or Start was never called the channel never closes.
func (b *Bus) Stopped() <-chan struct{} {
	return b.doneCh
}

// dispatch invokes every matching handler for one event: concrete
// subscriptions first, then wildcards, each group in registration order.
func (b *Bus) dispatch(ctx context.Context, evt *event.Envelope) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.byType[evt.Type])+len(b.wildcards))
	handlers = append(handlers, b.byType[evt.Type]...)
	handlers = append(handlers, b.wildcards...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	spanCtx, span := observability.StartDispatchSpan(ctx, string(evt.Type), evt.ID)
	for _, h := range handlers {
		b.invoke(spanCtx, evt, h)
	}
	observability.EndSpanWithError(span, nil)
}

func (b *Bus) invoke(ctx context.Context, evt *event.Envelope, h Handler) {
	start := time.Now()
	err := safeHandle(ctx, evt, h)
	b.metrics.RecordDelivery(ctx, string(evt.Type), h.Name(), time.Since(start), err)

	if err != nil {
		b.failed.Add(1)
		b.dlq.add(DeadLetter{
			Event:   evt,
			Handler: h.Name(),
			Err:     err.Error(),
			At:      time.Now().UTC(),
		})
		observability.LogHandlerError(b.cfg.Logger, h.Name(), string(evt.Type), evt.ID, err)
		if b.cfg.OnError != nil {
			b.cfg.OnError(evt, h.Name(), err)
		}
		return
	}
	b.delivered.Add(1)
}

// safeHandle invokes a handler, converting a panic into a HandlerError so
// one misbehaving subscriber cannot take down the dispatch loop.
func safeHandle(ctx context.Context, evt *event.Envelope, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{
				Handler: h.Name(),
				Event:   evt,
				Message: fmt.Sprintf("handler panicked: %v", r),
			}
		}
	}()
	return h.Handle(ctx, evt)
}

// DeadLetters returns the retained failed deliveries, oldest first.
func (b *Bus) DeadLetters() []DeadLetter {
	return b.dlq.snapshot()
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	subscribers := len(b.wildcards)
	for _, hs := range b.byType {
		subscribers += len(hs)
	}
	b.mu.RUnlock()

	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		Failed:        b.failed.Load(),
		Dropped:       b.dropped.Load(),
		Persisted:     b.persisted.Load(),
		PersistFailed: b.persistFailed.Load(),
		QueueDepth:    len(b.queue),
		Subscribers:   subscribers,
		DeadLetters:   b.dlq.len(),
	}
}

// Deduplication helpers. The cache maps event_id to acceptance time and
// is pruned on a half-TTL cadence by a goroutine started in New.

func (b *Bus) isDuplicate(evt *event.Envelope) bool {
	if b.dedupeCache == nil {
		return false
	}
	b.dedupeMu.Lock()
	defer b.dedupeMu.Unlock()

	seen, ok := b.dedupeCache[evt.ID]
	return ok && time.Since(seen) < b.cfg.DedupeTTL
}

func (b *Bus) recordAccepted(evt *event.Envelope) {
	if b.dedupeCache == nil {
		return
	}
	b.dedupeMu.Lock()
	defer b.dedupeMu.Unlock()

	b.dedupeCache[evt.ID] = time.Now()
}

func (b *Bus) cleanupDedupe() {
	ticker := time.NewTicker(b.cfg.DedupeTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-b.cfg.DedupeTTL)
			b.dedupeMu.Lock()
			for id, seen := range b.dedupeCache {
				if seen.Before(cutoff) {
					delete(b.dedupeCache, id)
				}
			}
			b.dedupeMu.Unlock()
		case <-b.stopCh:
			return
		}
	}
}
