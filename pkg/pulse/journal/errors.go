package journal

import (
	"errors"
	"fmt"
)

// Sentinel errors for journal operations.
var (
	// ErrReaderStarted indicates the background reader is already running.
	ErrReaderStarted = errors.New("journal reader already started")

	// ErrNilHandler indicates a subscription without a handler.
	ErrNilHandler = errors.New("nil handler")
)

// DecodeError wraps a malformed journal line with its location. Poll
// never returns it: a bad line is skipped, counted, and logged, and the
// batch continues. Replay is strict and aborts with a *DecodeError so an
// audit can point at the corrupt byte range.
type DecodeError struct {
	Path   string // journal file holding the line
	Offset int64  // byte offset of the line start
	Err    error  // underlying parse failure
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("journal %s: line at offset %d: %v", e.Path, e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
