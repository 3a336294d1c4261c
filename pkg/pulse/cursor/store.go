// Package cursor provides durable storage for journal read offsets, so a
// restarted reader resumes where it left off instead of replaying the file.
//
// Offsets are owned by a single reader instance; stores are never shared
// between processes. Saves only move forward: a regression (an offset
// smaller than the stored one) is silently ignored, which keeps a late or
// retried save from rewinding a reader past data it already delivered.
package cursor

import "errors"

// Store persists per-file read offsets.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load retrieves the stored offset for a journal file.
	// The boolean is false when no offset has been saved for the file yet.
	Load(file string) (int64, bool, error)

	// Save stores the offset for a journal file. Saving an offset smaller
	// than the stored one is a no-op.
	Save(file string, offset int64) error

	// Delete removes the stored offset for a journal file.
	// Returns nil if no offset exists.
	Delete(file string) error

	// Close releases any resources (connections, files).
	Close() error
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("cursor store closed")
