package reactive

import (
	"errors"
	"fmt"
)

// ErrUnknownKey is returned when writing a key the Observer did not find
// when it walked the object. Keys cannot be added after observation.
var ErrUnknownKey = errors.New("reactive: unknown key")

// ErrTypeMismatch is returned when a written value cannot be stored in the
// backing struct field or map element.
var ErrTypeMismatch = errors.New("reactive: value type mismatch")

// ErrDisposed is returned when updating a Watcher that has been disposed.
var ErrDisposed = errors.New("reactive: watcher disposed")

// SubscriberError reports a subscriber that failed while being notified.
// Notification continues past a failing subscriber; the errors of a single
// write are joined with errors.Join.
type SubscriberError struct {
	// SubscriberID identifies the failing subscriber.
	SubscriberID uint64

	// Key is the property whose change was being delivered, if known.
	Key string

	// Err is the returned error, or a description of the panic.
	Err error

	// Panic is the recovered value when the subscriber panicked.
	Panic any

	// Stack is the goroutine stack captured at the panic.
	Stack []byte
}

// Error implements the error interface.
func (e *SubscriberError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("reactive: subscriber %d failed on %q: %v", e.SubscriberID, e.Key, e.Err)
	}
	return fmt.Sprintf("reactive: subscriber %d failed: %v", e.SubscriberID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SubscriberError) Unwrap() error {
	return e.Err
}

// Panicked reports whether the subscriber panicked instead of returning an error.
func (e *SubscriberError) Panicked() bool {
	return e.Panic != nil
}

// SubscriberErrors flattens a joined notification error into its
// *SubscriberError parts, in delivery order.
func SubscriberErrors(err error) []*SubscriberError {
	if err == nil {
		return nil
	}

	var out []*SubscriberError
	var walk func(error)
	walk = func(e error) {
		if se, ok := e.(*SubscriberError); ok {
			out = append(out, se)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		if inner := errors.Unwrap(e); inner != nil {
			walk(inner)
		}
	}
	walk(err)
	return out
}
