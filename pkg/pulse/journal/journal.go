package journal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tradesys/pulse/pkg/pulse/cursor"
	"github.com/tradesys/pulse/pkg/pulse/event"
	"github.com/tradesys/pulse/pkg/pulse/observability"
)

// Wildcard subscribes a handler to every event type.
const Wildcard event.Type = "*"

// Defaults applied by New for zero Config fields.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxBatch     = 500
)

const (
	filePrefix = "journal_"
	fileSuffix = ".jsonl"
	dateLayout = "20060102"
)

// Config configures a journal instance.
type Config struct {
	// Dir is the directory holding the per-day journal files. Required.
	Dir string

	// ProcessName identifies this writer in journal entries.
	// Default: base name of os.Args[0]
	ProcessName string

	// ProcessID identifies this writer for self-write suppression.
	// Default: os.Getpid()
	ProcessID int

	// PollInterval is the background reader's cadence.
	// Default: 500ms
	PollInterval time.Duration

	// MaxBatch bounds the lines parsed per poll.
	// Default: 500
	MaxBatch int

	// ReadFromLatest starts tailing a file first touched by this instance
	// at its current end instead of replaying it from the beginning.
	// Default: false (replay the whole file, at-least-once)
	ReadFromLatest bool

	// CursorStore, when set, persists read offsets so a restarted
	// instance resumes where it left off. Offsets stay private to the
	// instance that saved them.
	CursorStore cursor.Store

	// Logger receives structured logs. nil disables logging.
	Logger *slog.Logger

	// Metrics receives journal metrics. nil disables metrics.
	Metrics observability.MetricsRecorder
}

func (c Config) withDefaults() Config {
	if c.ProcessName == "" {
		c.ProcessName = filepath.Base(os.Args[0])
	}
	if c.ProcessID == 0 {
		c.ProcessID = os.Getpid()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultMaxBatch
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid journal config: Dir is empty")
	}
	return nil
}

// Stats is a point-in-time snapshot of journal counters.
type Stats struct {
	Written       uint64 // lines appended and fsynced
	WritesFailed  uint64 // appends that failed (logged, non-fatal)
	Read          uint64 // foreign entries surfaced to the caller
	Skipped       uint64 // own writes suppressed while polling
	Malformed     uint64 // lines skipped as undecodable
	Polls         uint64 // poll invocations
	HandlerErrors uint64 // subscriber failures during poll dispatch
	Subscribers   int    // registered handlers, wildcard included
}

// Journal is one process's handle on the shared per-day journal files:
// a single writer with its own gap-free sequence, and a private-offset
// tailing reader. See the package documentation for the cross-process
// contract.
type Journal struct {
	cfg     Config
	logger  *slog.Logger
	metrics observability.MetricsRecorder

	// writeMu funnels all appends through one writer, so each journal
	// line is a single whole-line write+fsync. seq only advances once the
	// line is in the file, keeping the per-writer sequence gap-free.
	writeMu sync.Mutex
	seq     uint64

	offsetMu sync.Mutex
	offsets  map[string]int64

	regMu     sync.RWMutex
	byType    map[event.Type][]Handler
	wildcards []Handler

	readerMu      sync.Mutex
	readerRunning bool
	readerStop    chan struct{}
	readerDone    chan struct{}

	written       atomic.Uint64
	writesFailed  atomic.Uint64
	read          atomic.Uint64
	skipped       atomic.Uint64
	malformed     atomic.Uint64
	polls         atomic.Uint64
	handlerErrors atomic.Uint64
}

// New creates a journal instance, creating Dir if needed and probing it
// for writability so an unusable directory fails construction instead of
// the first fire-and-forget publish.
func New(cfg Config) (*Journal, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	probe, err := os.CreateTemp(cfg.Dir, ".pulse-probe-*")
	if err != nil {
		return nil, fmt.Errorf("journal dir not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	return &Journal{
		cfg:     cfg,
		logger:  observability.EnrichLogger(cfg.Logger, "journal", cfg.ProcessName, cfg.ProcessID),
		metrics: metrics,
		offsets: make(map[string]int64),
		byType:  make(map[event.Type][]Handler),
	}, nil
}

// TodayPath returns the journal file for the current UTC day.
func (j *Journal) TodayPath() string {
	return j.PathForDate(time.Now())
}

// PathForDate returns the journal file for the given date's UTC day.
func (j *Journal) PathForDate(t time.Time) string {
	return filepath.Join(j.cfg.Dir, filePrefix+t.UTC().Format(dateLayout)+fileSuffix)
}

// Publish appends the envelope to today's journal file as one fsynced
// JSON line. Failures are logged and counted before the error is
// returned; this path is fire-and-forget telemetry, so callers are free
// to discard the error and loops never abort on it.
func (j *Journal) Publish(ctx context.Context, evt *event.Envelope) error {
	path := j.TodayPath()

	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	entry := &Entry{
		Seq:         j.seq + 1,
		TsUnix:      float64(time.Now().UnixNano()) / 1e9,
		ProcessID:   j.cfg.ProcessID,
		ProcessName: j.cfg.ProcessName,
		Event:       evt,
	}
	line, err := entry.encode()
	if err != nil {
		return j.writeFailed(ctx, path, err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return j.writeFailed(ctx, path, fmt.Errorf("open journal: %w", err))
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return j.writeFailed(ctx, path, fmt.Errorf("append journal line: %w", err))
	}

	// The line is in the file now, so the sequence advances even if the
	// fsync below fails; retrying with the same seq would break the
	// strictly-increasing invariant for readers that already saw it.
	j.seq = entry.Seq

	if err := f.Sync(); err != nil {
		f.Close()
		return j.writeFailed(ctx, path, fmt.Errorf("sync journal: %w", err))
	}
	if err := f.Close(); err != nil {
		return j.writeFailed(ctx, path, fmt.Errorf("close journal: %w", err))
	}

	j.written.Add(1)
	observability.LogJournalWrite(j.logger, path, entry.Seq, len(line))
	j.metrics.RecordPublish(ctx, string(evt.Type), "journal")
	j.metrics.RecordJournalWrite(ctx, int64(len(line)), nil)
	return nil
}

func (j *Journal) writeFailed(ctx context.Context, path string, err error) error {
	j.writesFailed.Add(1)
	observability.LogJournalWriteError(j.logger, path, err)
	j.metrics.RecordJournalWrite(ctx, 0, err)
	return err
}

// Seq returns the sequence number of the last line this instance wrote.
func (j *Journal) Seq() uint64 {
	j.writeMu.Lock()
	defer j.writeMu.Unlock()
	return j.seq
}

// Subscribe registers a handler for one event type observed while
// polling. Pass Wildcard to receive every foreign event. Handlers run in
// registration order, concrete subscriptions before wildcard ones, and
// only from the poll path, never from Publish.
func (j *Journal) Subscribe(t event.Type, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	j.regMu.Lock()
	defer j.regMu.Unlock()

	if t == Wildcard {
		j.wildcards = append(j.wildcards, h)
		return nil
	}
	j.byType[t] = append(j.byType[t], h)
	return nil
}

// SubscribeAll registers a handler for every foreign event.
func (j *Journal) SubscribeAll(h Handler) error {
	return j.Subscribe(Wildcard, h)
}

// Unsubscribe removes every handler registered under the given name for
// the given type (or Wildcard).
func (j *Journal) Unsubscribe(t event.Type, name string) {
	j.regMu.Lock()
	defer j.regMu.Unlock()

	if t == Wildcard {
		j.wildcards = removeByName(j.wildcards, name)
		return
	}
	kept := removeByName(j.byType[t], name)
	if len(kept) == 0 {
		delete(j.byType, t)
		return
	}
	j.byType[t] = kept
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

// Stats returns a snapshot of the journal counters.
func (j *Journal) Stats() Stats {
	j.regMu.RLock()
	subscribers := len(j.wildcards)
	for _, hs := range j.byType {
		subscribers += len(hs)
	}
	j.regMu.RUnlock()

	return Stats{
		Written:       j.written.Load(),
		WritesFailed:  j.writesFailed.Load(),
		Read:          j.read.Load(),
		Skipped:       j.skipped.Load(),
		Malformed:     j.malformed.Load(),
		Polls:         j.polls.Load(),
		HandlerErrors: j.handlerErrors.Load(),
		Subscribers:   subscribers,
	}
}
