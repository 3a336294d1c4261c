package bus

import (
	"errors"
	"fmt"

	"github.com/tradesys/pulse/pkg/pulse/event"
)

// Sentinel errors for bus operations.
var (
	// ErrQueueFull indicates TryPublish found no free queue slot.
	ErrQueueFull = errors.New("bus queue full")

	// ErrBusStopped indicates the bus no longer accepts events.
	ErrBusStopped = errors.New("bus stopped")

	// ErrAlreadyRunning indicates a dispatch loop is already active.
	ErrAlreadyRunning = errors.New("bus dispatcher already running")

	// ErrNilHandler indicates a subscription without a handler.
	ErrNilHandler = errors.New("nil handler")
)

// HandlerError wraps a subscriber failure with its delivery context.
type HandlerError struct {
	Handler string          // Handler that failed
	Event   *event.Envelope // The event being delivered
	Message string          // Error message
	Err     error           // Underlying error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handler %s: event %s: %s: %v", e.Handler, e.Event.ID, e.Message, e.Err)
	}
	return fmt.Sprintf("handler %s: event %s: %s", e.Handler, e.Event.ID, e.Message)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
