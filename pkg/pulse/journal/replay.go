package journal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

// Replay reads the journal file at path from the beginning and invokes
// fn for every entry in file order. It is meant for audit and backfill
// over completed files: it ignores read offsets, delivers own writes as
// well as foreign ones, and unlike Poll it is strict. A malformed line
// aborts the replay with a *DecodeError, and the first error from fn
// stops the walk and is returned as-is.
func (j *Journal) Replay(ctx context.Context, path string, fn func(*Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var offset int64
	r := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, rerr := r.ReadBytes('\n')
		if rerr == io.EOF && len(line) == 0 {
			return nil
		}
		if rerr != nil && rerr != io.EOF {
			return fmt.Errorf("read journal: %w", rerr)
		}

		lineStart := offset
		offset += int64(len(line))

		entry, derr := decodeEntry(line)
		if derr != nil {
			return &DecodeError{Path: path, Offset: lineStart, Err: derr}
		}
		if err := fn(entry); err != nil {
			return err
		}

		if rerr == io.EOF {
			return nil
		}
	}
}
