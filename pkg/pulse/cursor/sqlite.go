package cursor

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists cursors to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite cursor store.
// The path should be a file path (e.g., "./cursors.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cursors (
			file TEXT PRIMARY KEY,
			byte_offset INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(file string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, false, ErrStoreClosed
	}

	var offset int64
	err := s.db.QueryRow(`
		SELECT byte_offset FROM cursors WHERE file = ?
	`, file).Scan(&offset)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
	return offset, true, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(file string, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	// The WHERE clause on the upsert enforces forward-only movement.
	_, err := s.db.Exec(`
		INSERT INTO cursors (file, byte_offset, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			byte_offset = excluded.byte_offset,
			updated_at = excluded.updated_at
		WHERE excluded.byte_offset > cursors.byte_offset
	`, file, offset, time.Now().UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`DELETE FROM cursors WHERE file = ?`, file)
	if err != nil {
		return fmt.Errorf("delete cursor: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
