package bus

import (
	"sync"
	"time"

	"github.com/tradesys/pulse/pkg/pulse/event"
)

// DeadLetter records one failed delivery: the event, the handler that
// failed, and the error text at the time of failure.
type DeadLetter struct {
	Event   *event.Envelope
	Handler string
	Err     string
	At      time.Time
}

// deadLetterRing is a fixed-capacity ring of recent failures. When full,
// the oldest entry is overwritten.
type deadLetterRing struct {
	mu   sync.Mutex
	buf  []DeadLetter
	next int
	size int
}

func newDeadLetterRing(capacity int) *deadLetterRing {
	return &deadLetterRing{buf: make([]DeadLetter, capacity)}
}

func (r *deadLetterRing) add(dl DeadLetter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = dl
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// snapshot returns the retained entries, oldest first.
func (r *deadLetterRing) snapshot() []DeadLetter {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]DeadLetter, 0, r.size)
	if r.size < len(r.buf) {
		return append(out, r.buf[:r.size]...)
	}
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

func (r *deadLetterRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
