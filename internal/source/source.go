package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/openvault/recur/internal/event"
)

// Source yields the program's events in strict (seq, subIndex) order.
// Delivery is at-least-once: after a reconnect a Source may replay events
// the caller has already seen; the caller's cursor gate handles that.
type Source interface {
	// Next blocks until an event strictly beyond after is available, the
	// context is cancelled, or the source fails. Transport failures are
	// wrapped in *TransientError; everything else is terminal.
	Next(ctx context.Context, after event.Cursor) (event.Event, error)
}

// Submitter carries management and settlement calls to the ledger program.
// Every method requires the caller's identity; results surface either as a
// typed rejection here or as an event on the Source.
type Submitter interface {
	CreateSubscription(ctx context.Context, caller, vault, token event.Address, recurring, initial event.Amount, period int64, data string) (event.ID, error)
	UpdateSubscription(ctx context.Context, caller event.Address, id event.ID, vault, token event.Address, recurring, initial event.Amount, period int64, data string) error
	DeleteSubscription(ctx context.Context, caller event.Address, id event.ID) error

	CreateInstance(ctx context.Context, caller event.Address, subscriptionID event.ID) (event.ID, error)
	UpdateInstance(ctx context.Context, caller event.Address, instanceID, subscriptionID event.ID, discount uint8, data string) error
	DeleteInstance(ctx context.Context, caller event.Address, subscriptionID, instanceID event.ID) error
	DeactivateInstance(ctx context.Context, caller event.Address, instanceID event.ID) error
	ReactivateInstance(ctx context.Context, caller event.Address, instanceID event.ID) error

	HandleInstancePayment(ctx context.Context, caller event.Address, subscriptionID, instanceID event.ID) error
}

// ErrClosed reports a permanently closed source.
var ErrClosed = errors.New("source closed")

// TransientError wraps a transport fault worth retrying with backoff:
// disconnects, timeouts. The reconciler resumes from its persisted cursor
// after one, never from an assumed next position.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient source error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable transport fault.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
