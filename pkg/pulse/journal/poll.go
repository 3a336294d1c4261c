package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/tradesys/pulse/pkg/pulse/event"
	"github.com/tradesys/pulse/pkg/pulse/observability"
)

// Poll reads the lines appended to today's journal file since the last
// poll and returns the foreign envelopes among them, oldest first. Each
// foreign envelope is also dispatched to the registered handlers before
// Poll returns. Own writes are suppressed by process id; malformed lines
// are skipped and counted, never aborting the batch.
//
// Poll resolves "today" at call time, so a long-lived reader loop moves
// to the new day's file on its own, but any lines landing in yesterday's
// file after the last poll of that day are not chased. A caller needing
// cross-midnight continuity must drain the old day explicitly via
// PollFile with PathForDate.
func (j *Journal) Poll(ctx context.Context) ([]*event.Envelope, error) {
	return j.PollFile(ctx, j.TodayPath())
}

// PollFile is Poll against an explicit journal file.
func (j *Journal) PollFile(ctx context.Context, path string) (out []*event.Envelope, err error) {
	j.polls.Add(1)
	done := observability.TimedOperation()
	start := time.Now()

	ctx, span := observability.StartPollSpan(ctx, path)
	defer func() { observability.EndSpanWithError(span, err) }()

	offset := j.offsetFor(path)

	f, oerr := os.Open(path)
	if errors.Is(oerr, fs.ErrNotExist) {
		// No writer has touched this day yet.
		j.metrics.RecordPoll(ctx, 0, time.Since(start))
		return nil, nil
	}
	if oerr != nil {
		err = fmt.Errorf("open journal: %w", oerr)
		return nil, err
	}
	defer f.Close()

	if info, serr := f.Stat(); serr == nil && info.Size() < offset {
		// The file shrank under our offset, so it was removed and
		// recreated. Start over rather than tailing past the end forever.
		if j.logger != nil {
			j.logger.Warn("journal file replaced, resetting offset",
				"path", path, "offset", offset, "size", info.Size())
		}
		offset = 0
	}

	if _, serr := f.Seek(offset, io.SeekStart); serr != nil {
		err = fmt.Errorf("seek journal: %w", serr)
		return nil, err
	}

	var (
		r     = bufio.NewReader(f)
		lines int
	)
	for lines < j.cfg.MaxBatch {
		line, rerr := r.ReadBytes('\n')
		if rerr != nil {
			// Without a trailing newline the line is a write still in
			// flight (or a torn tail); leave it for the next poll by not
			// advancing the offset past it.
			if rerr != io.EOF {
				err = fmt.Errorf("read journal: %w", rerr)
			}
			break
		}
		lineStart := offset
		offset += int64(len(line))
		lines++

		entry, derr := decodeEntry(line)
		if derr != nil {
			j.malformed.Add(1)
			observability.LogDecodeSkip(j.logger, path, lineStart, derr)
			continue
		}
		if entry.ProcessID == j.cfg.ProcessID {
			j.skipped.Add(1)
			continue
		}

		j.read.Add(1)
		out = append(out, entry.Event)
		j.dispatch(ctx, entry.Event)
	}

	if lines > 0 {
		j.commitOffset(path, offset)
	}

	observability.LogPollBatch(j.logger, path, lines, len(out), done())
	j.metrics.RecordPoll(ctx, lines, time.Since(start))
	return out, err
}

// offsetFor returns the current read offset for path, initializing it on
// first touch: from the cursor store when one is configured, otherwise
// from the file's current end when ReadFromLatest is set, otherwise zero.
func (j *Journal) offsetFor(path string) int64 {
	j.offsetMu.Lock()
	defer j.offsetMu.Unlock()

	if off, ok := j.offsets[path]; ok {
		return off
	}
	off := j.initialOffset(path)
	j.offsets[path] = off
	return off
}

func (j *Journal) initialOffset(path string) int64 {
	if j.cfg.CursorStore != nil {
		off, ok, err := j.cfg.CursorStore.Load(path)
		if err != nil {
			// A broken store must not stop the reader; fall through to the
			// configured default and let Save complain again later.
			if j.logger != nil {
				j.logger.Warn("cursor load failed, using default offset",
					"path", path, "error", err.Error())
			}
		} else if ok {
			return off
		}
	}
	if j.cfg.ReadFromLatest {
		if info, err := os.Stat(path); err == nil {
			return info.Size()
		}
	}
	return 0
}

func (j *Journal) commitOffset(path string, offset int64) {
	j.offsetMu.Lock()
	j.offsets[path] = offset
	j.offsetMu.Unlock()

	if j.cfg.CursorStore == nil {
		return
	}
	if err := j.cfg.CursorStore.Save(path, offset); err != nil {
		if j.logger != nil {
			j.logger.Warn("cursor save failed",
				"path", path, "offset", offset, "error", err.Error())
		}
	}
}

// dispatch invokes every handler registered for the envelope's type,
// concrete subscriptions first, then wildcards, each in registration
// order. Failures and panics are counted and logged; they never abort
// the remaining handlers or the poll batch.
func (j *Journal) dispatch(ctx context.Context, evt *event.Envelope) {
	j.regMu.RLock()
	handlers := make([]Handler, 0, len(j.byType[evt.Type])+len(j.wildcards))
	handlers = append(handlers, j.byType[evt.Type]...)
	handlers = append(handlers, j.wildcards...)
	j.regMu.RUnlock()

	for _, h := range handlers {
		start := time.Now()
		err := j.invoke(ctx, evt, h)
		j.metrics.RecordDelivery(ctx, string(evt.Type), h.Name(), time.Since(start), err)
		if err != nil {
			j.handlerErrors.Add(1)
			observability.LogHandlerError(j.logger, h.Name(), string(evt.Type), evt.ID, err)
		}
	}
}

func (j *Journal) invoke(ctx context.Context, evt *event.Envelope, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, evt)
}
