package delivery

import (
	"errors"
	"fmt"
)

var (
	// ErrDeliveryTransport matches every *DeliveryTransportError.
	ErrDeliveryTransport = errors.New("delivery transport failure")

	// ErrInvalidDelay is returned by PublishDelayed for a non-positive delay.
	ErrInvalidDelay = errors.New("delay must be positive")

	// ErrInvalidDestination is returned by PublishDelayed for an empty destination.
	ErrInvalidDestination = errors.New("destination must not be empty")

	// ErrInvalidQueue is returned by constructors when no queue is configured.
	ErrInvalidQueue = errors.New("queue must not be empty")

	// ErrNilHandler is returned by constructors given a nil handler.
	ErrNilHandler = errors.New("handler must not be nil")

	// ErrNilClient is returned by constructors given a nil broker client.
	ErrNilClient = errors.New("broker client must not be nil")

	// ErrHandlerPanic wraps a value recovered from a panicking handler.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrSinkPanic wraps a value recovered from a panicking DeadLetterSink.
	ErrSinkPanic = errors.New("dead-letter sink panicked")

	// ErrAlreadyRunning is returned by Run when the component is already running.
	ErrAlreadyRunning = errors.New("already running")
)

// DeliveryTransportError reports a broker failure while settling a delivery or
// publishing its follow-up message. It is never retried by this package; the
// caller is expected to stop and let the broker redeliver whatever was left
// unacknowledged.
type DeliveryTransportError struct {
	// Op is the broker operation that failed: "ack", "reject", "nack",
	// "publish" or "declare".
	Op string

	// Queue is the queue the delivery came from or the follow-up targeted.
	Queue string

	Err error
}

func (e *DeliveryTransportError) Error() string {
	if e.Queue == "" {
		return fmt.Sprintf("delivery transport: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("delivery transport: %s %s: %v", e.Op, e.Queue, e.Err)
}

// Unwrap exposes both ErrDeliveryTransport and the broker error to errors.Is.
func (e *DeliveryTransportError) Unwrap() []error {
	return []error{ErrDeliveryTransport, e.Err}
}

func transportError(op, queue string, err error) error {
	return &DeliveryTransportError{Op: op, Queue: queue, Err: err}
}

// permanentError marks a handler failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. A Consumer dead-letters a message
// whose handler returns a permanent error without consulting the retry policy.
// Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
