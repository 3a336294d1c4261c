package journal_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradesys/pulse/pkg/pulse/cursor"
	"github.com/tradesys/pulse/pkg/pulse/event"
	"github.com/tradesys/pulse/pkg/pulse/journal"
)

// appendRaw writes bytes to the journal file exactly as given, standing in
// for another process (or a corruption) the Journal API can't produce.
func appendRaw(t *testing.T, path string, data []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// foreignLine renders a journal line as a process with the given pid
// would have written it.
func foreignLine(t *testing.T, seq uint64, pid int, evt *event.Envelope) []byte {
	t.Helper()
	line, err := json.Marshal(journal.Entry{
		Seq:         seq,
		TsUnix:      float64(time.Now().UnixNano()) / 1e9,
		ProcessID:   pid,
		ProcessName: "other",
		Event:       evt,
	})
	require.NoError(t, err)
	return append(line, '\n')
}

func TestPollDeliversForeignEventExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	r := newReader(t, dir)
	ctx := context.Background()

	evt := mustEvent(t, event.TypeOrderFill, "sig_x")
	require.NoError(t, w.Publish(ctx, evt))

	got, err := r.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, evt.ID, got[0].ID)
	assert.Equal(t, event.TypeOrderFill, got[0].Type)
	assert.Equal(t, "sig_x", got[0].CorrelationID)

	// Nothing new: a second poll returns nothing.
	got, err = r.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Read)
	assert.Equal(t, uint64(2), stats.Polls)
}

func TestPollSuppressesOwnWrites(t *testing.T) {
	dir := t.TempDir()
	r := newReader(t, dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Publish(ctx, mustEvent(t, event.TypeHealth, "sig_own")))
	}

	got, err := r.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "a process must never consume its own writes")
	assert.Equal(t, uint64(3), r.Stats().Skipped)
}

func TestPollMixedWritersSuppressesOnlyOwn(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	r := newReader(t, dir)
	ctx := context.Background()

	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_1")))
	require.NoError(t, r.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_2")))
	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_3")))

	got, err := r.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sig_1", got[0].CorrelationID)
	assert.Equal(t, "sig_3", got[1].CorrelationID)
}

func TestPollSkipsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	r := newReader(t, dir)
	ctx := context.Background()

	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_ok1")))
	appendRaw(t, w.TodayPath(), []byte("{this is not json\n"))
	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_ok2")))

	got, err := r.Poll(ctx)
	require.NoError(t, err, "a bad line must not abort the batch")
	require.Len(t, got, 2)
	assert.Equal(t, "sig_ok1", got[0].CorrelationID)
	assert.Equal(t, "sig_ok2", got[1].CorrelationID)
	assert.Equal(t, uint64(1), r.Stats().Malformed)
}

func TestPollSkipsEntryWithoutEnvelope(t *testing.T) {
	dir := t.TempDir()
	r := newReader(t, dir)
	ctx := context.Background()

	// Valid JSON, but not a journal entry.
	appendRaw(t, r.TodayPath(), []byte(`{"seq":1,"process_id":40001}`+"\n"))
	appendRaw(t, r.TodayPath(), foreignLine(t, 2, writerPID, mustEvent(t, event.TypeClose, "sig_c")))

	got, err := r.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, event.TypeClose, got[0].Type)
	assert.Equal(t, uint64(1), r.Stats().Malformed)
}

func TestPollLeavesPartialLineForNextPoll(t *testing.T) {
	dir := t.TempDir()
	r := newReader(t, dir)
	ctx := context.Background()
	path := r.TodayPath()

	full := foreignLine(t, 1, writerPID, mustEvent(t, event.TypeSignal, "sig_full"))
	next := foreignLine(t, 2, writerPID, mustEvent(t, event.TypeSignal, "sig_torn"))
	half := len(next) / 2

	appendRaw(t, path, full)
	appendRaw(t, path, next[:half]) // a write still in flight

	got, err := r.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sig_full", got[0].CorrelationID)
	assert.Equal(t, uint64(0), r.Stats().Malformed, "a torn tail is not a decode failure")

	// The writer finishes the line; the next poll picks it up whole.
	appendRaw(t, path, next[half:])

	got, err = r.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sig_torn", got[0].CorrelationID)
}

func TestPollHonorsMaxBatch(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	r := newReader(t, dir, func(cfg *journal.Config) { cfg.MaxBatch = 2 })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_batch")))
	}

	for _, want := range []int{2, 2, 1, 0} {
		got, err := r.Poll(ctx)
		require.NoError(t, err)
		assert.Len(t, got, want)
	}
}

func TestPollMissingFileIsNotAnError(t *testing.T) {
	r := newReader(t, t.TempDir())

	got, err := r.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPollDispatchesConcreteBeforeWildcard(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	r := newReader(t, dir)
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	record := func(name string) journal.HandlerFunc {
		return func(ctx context.Context, evt *event.Envelope) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	require.NoError(t, r.Subscribe(event.TypeOrderFill, journal.NamedHandler("fill", record("fill"))))
	require.NoError(t, r.SubscribeAll(journal.NamedHandler("audit", record("audit"))))

	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeOrderFill, "sig_d")))

	_, err := r.Poll(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"fill", "audit"}, order)
}

func TestPollHandlerFailureDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	r := newReader(t, dir)
	ctx := context.Background()

	var delivered []string
	require.NoError(t, r.SubscribeAll(journal.NamedHandler("flaky",
		func(ctx context.Context, evt *event.Envelope) error {
			if evt.CorrelationID == "sig_bad" {
				return errors.New("boom")
			}
			delivered = append(delivered, evt.CorrelationID)
			return nil
		})))

	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_bad")))
	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_good")))

	got, err := r.Poll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2, "the failing handler must not hide the event from Poll callers")
	assert.Equal(t, []string{"sig_good"}, delivered)
	assert.Equal(t, uint64(1), r.Stats().HandlerErrors)
}

func TestPollHandlerPanicRecovered(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	r := newReader(t, dir)
	ctx := context.Background()

	require.NoError(t, r.SubscribeAll(journal.NamedHandler("panicky",
		func(ctx context.Context, evt *event.Envelope) error {
			panic("handler bug")
		})))

	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_p")))

	got, err := r.Poll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, uint64(1), r.Stats().HandlerErrors)
}

func TestReadFromLatestTailsFromEnd(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	ctx := context.Background()

	// History written before the reader exists.
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_old")))
	}

	r := newReader(t, dir, func(cfg *journal.Config) { cfg.ReadFromLatest = true })

	got, err := r.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "history before attach must be skipped")

	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_new")))

	got, err = r.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sig_new", got[0].CorrelationID)
}

func TestCursorStoreResumesAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	store := cursor.NewMemoryStore()
	w := newWriter(t, dir)
	ctx := context.Background()

	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_before")))

	r1 := newReader(t, dir, func(cfg *journal.Config) { cfg.CursorStore = store })
	got, err := r1.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// A restart is a fresh instance over the same store.
	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_after")))

	r2 := newReader(t, dir, func(cfg *journal.Config) { cfg.CursorStore = store })
	got, err = r2.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "already-delivered lines must not replay")
	assert.Equal(t, "sig_after", got[0].CorrelationID)
}

func TestPollResetsOffsetWhenFileReplaced(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	r := newReader(t, dir)
	ctx := context.Background()

	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_1")))
	require.NoError(t, w.Publish(ctx, mustEvent(t, event.TypeSignal, "sig_1")))
	_, err := r.Poll(ctx)
	require.NoError(t, err)

	// Simulate an operator rotating the file away. The recreated file is
	// shorter than the reader's offset, which forces the reset.
	require.NoError(t, os.Remove(w.TodayPath()))
	appendRaw(t, w.TodayPath(), foreignLine(t, 1, writerPID, mustEvent(t, event.TypeSignal, "sig_2")))

	got, err := r.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sig_2", got[0].CorrelationID)
}

func TestPollFileReadsExplicitPath(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t, dir)
	r := newReader(t, dir)
	ctx := context.Background()

	// Yesterday's file, addressed explicitly.
	yesterday := w.PathForDate(time.Now().UTC().AddDate(0, 0, -1))
	appendRaw(t, yesterday, foreignLine(t, 1, writerPID, mustEvent(t, event.TypeClose, "sig_y")))

	got, err := r.PollFile(ctx, yesterday)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sig_y", got[0].CorrelationID)
}
