package publisher

import (
	"context"
	"errors"

	"github.com/tradesys/pulse/pkg/pulse/event"
)

// Sink accepts envelopes for delivery. Both *bus.Bus (same-process
// dispatch) and *journal.Journal (durable cross-process transport)
// satisfy it, so the facade is wired to either or both without caring
// which.
type Sink interface {
	Publish(ctx context.Context, evt *event.Envelope) error
}

// MultiSink fans each envelope out to every sink in order. All sinks are
// attempted even when an earlier one fails; the failures come back joined
// so a caller can still see each delivery path's complaint.
type MultiSink []Sink

// Publish implements Sink.
func (m MultiSink) Publish(ctx context.Context, evt *event.Envelope) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
