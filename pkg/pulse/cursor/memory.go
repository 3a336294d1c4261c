package cursor

import "sync"

// MemoryStore is an in-memory cursor store. Offsets are lost when the
// process exits; use it in tests or for readers that are fine replaying
// the current day file on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	offsets map[string]int64
	closed  bool
}

// NewMemoryStore creates a new in-memory cursor store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		offsets: make(map[string]int64),
	}
}

// Load implements Store.
func (m *MemoryStore) Load(file string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, false, ErrStoreClosed
	}

	offset, ok := m.offsets[file]
	return offset, ok, nil
}

// Save implements Store.
func (m *MemoryStore) Save(file string, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if current, ok := m.offsets[file]; ok && offset < current {
		return nil
	}
	m.offsets[file] = offset
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(file string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.offsets, file)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.offsets = nil
	return nil
}

// Len returns the number of tracked files.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.offsets)
}
