package journal

import (
	"context"

	"github.com/tradesys/pulse/pkg/pulse/event"
)

// Handler consumes foreign envelopes surfaced by the poller. Name
// identifies the handler in logs and Unsubscribe calls. The interface is
// shape-identical to the in-process bus handler, so one implementation
// can subscribe on both paths.
type Handler interface {
	Name() string
	Handle(ctx context.Context, evt *event.Envelope) error
}

// HandlerFunc is the function form of a handler body.
type HandlerFunc func(ctx context.Context, evt *event.Envelope) error

// NamedHandler adapts a function to the Handler interface.
func NamedHandler(name string, fn HandlerFunc) Handler {
	return &namedHandler{name: name, fn: fn}
}

type namedHandler struct {
	name string
	fn   HandlerFunc
}

func (h *namedHandler) Name() string { return h.name }

func (h *namedHandler) Handle(ctx context.Context, evt *event.Envelope) error {
	return h.fn(ctx, evt)
}
