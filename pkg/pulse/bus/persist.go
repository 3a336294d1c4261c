package bus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tradesys/pulse/pkg/pulse/event"
)

// persister mirrors accepted envelopes into per-type JSONL files under a
// directory. File handles stay open between writes; close releases them.
type persister struct {
	dir   string
	mu    sync.Mutex
	files map[event.Type]*os.File
}

func newPersister(dir string) (*persister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create persist dir: %w", err)
	}
	return &persister{dir: dir, files: make(map[event.Type]*os.File)}, nil
}

// write appends one envelope line to the file for its type and returns
// the number of bytes written.
func (p *persister) write(evt *event.Envelope) (int, error) {
	data, err := evt.Encode()
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.files[evt.Type]
	if !ok {
		path := filepath.Join(p.dir, fileForType(evt.Type))
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, fmt.Errorf("open persist file: %w", err)
		}
		p.files[evt.Type] = f
	}

	n, err := f.Write(append(data, '\n'))
	if err != nil {
		return n, fmt.Errorf("append persist line: %w", err)
	}
	return n, nil
}

func (p *persister) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for t, f := range p.files {
		f.Close()
		delete(p.files, t)
	}
}

// fileForType maps an event type to a safe file name.
func fileForType(t event.Type) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, string(t))
	return "events_" + sanitized + ".jsonl"
}
