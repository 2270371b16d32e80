package rabbit

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Common RabbitMQ error types that can be used by consumers of this package.
// Operation errors (ErrPublishFailed, ErrDeclareFailed, ...) are always the
// outermost wrap; the translated cause is wrapped as well, so both can be
// matched with errors.Is.
var (
	// ErrConnectionFailed is returned when connection to RabbitMQ cannot be established
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionLost is returned when connection to RabbitMQ is lost
	ErrConnectionLost = errors.New("connection lost")

	// ErrConnectionClosed is returned when connection is closed
	ErrConnectionClosed = errors.New("connection closed")

	// ErrChannelClosed is returned when channel is closed
	ErrChannelClosed = errors.New("channel closed")

	// ErrChannelError is returned for channel-related errors
	ErrChannelError = errors.New("channel error")

	// ErrAccessDenied is returned when access is denied to a resource
	ErrAccessDenied = errors.New("access denied")

	// ErrAuthenticationFailed is returned when authentication fails
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrQueueNotFound is returned when queue doesn't exist
	ErrQueueNotFound = errors.New("queue not found")

	// ErrExchangeNotFound is returned when exchange doesn't exist
	ErrExchangeNotFound = errors.New("exchange not found")

	// ErrPreconditionFailed is returned when a declaration conflicts with existing arguments
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrResourceLocked is returned when resource is locked
	ErrResourceLocked = errors.New("resource locked")

	// ErrMessageTooLarge is returned when message exceeds size limits
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageNacked is returned when the broker negatively confirms a publish
	ErrMessageNacked = errors.New("message nacked")

	// ErrNotAllowed is returned when operation is not allowed
	ErrNotAllowed = errors.New("not allowed")

	// ErrInternalError is returned for broker internal errors
	ErrInternalError = errors.New("internal error")

	// ErrProtocolError is returned for protocol-related errors
	ErrProtocolError = errors.New("protocol error")

	// ErrTimeout is returned when operation times out
	ErrTimeout = errors.New("timeout")

	// ErrNetworkError is returned for network-related errors
	ErrNetworkError = errors.New("network error")

	// ErrPublishFailed is returned when publish operation fails
	ErrPublishFailed = errors.New("publish failed")

	// ErrConsumeFailed is returned when consume operation fails
	ErrConsumeFailed = errors.New("consume failed")

	// ErrAckFailed is returned when acknowledge operation fails
	ErrAckFailed = errors.New("acknowledge failed")

	// ErrNackFailed is returned when negative acknowledge operation fails
	ErrNackFailed = errors.New("negative acknowledge failed")

	// ErrRejectFailed is returned when reject operation fails
	ErrRejectFailed = errors.New("reject failed")

	// ErrQoSFailed is returned when QoS operation fails
	ErrQoSFailed = errors.New("QoS failed")

	// ErrBindFailed is returned when bind operation fails
	ErrBindFailed = errors.New("bind failed")

	// ErrDeclareFailed is returned when declare operation fails
	ErrDeclareFailed = errors.New("declare failed")

	// ErrCancelled is returned when operation is cancelled
	ErrCancelled = errors.New("operation cancelled")
)

// wrapError wraps err with the operation sentinel and, when it can be mapped,
// the translated cause.
func wrapError(op error, err error) error {
	translated := translate(err)
	if translated == nil || errors.Is(err, translated) {
		return fmt.Errorf("%w: %w", op, err)
	}
	return fmt.Errorf("%w: %w: %w", op, translated, err)
}

// TranslateError converts AMQP/RabbitMQ-specific errors into the errors defined
// above. If an error doesn't match any known type, it's returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if translated := translate(err); translated != nil {
		return translated
	}
	return err
}

// translate returns the mapped error, or nil when err matches no known pattern.
func translate(err error) error {
	if errors.Is(err, amqp.ErrClosed) {
		return ErrChannelClosed
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return translateAMQPError(amqpErr)
	}

	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		return translateSyscallError(syscallErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetworkError
	}

	return translateByErrorMessage(strings.ToLower(err.Error()))
}

// translateAMQPError maps AMQP reply codes to errors
func translateAMQPError(amqpErr *amqp.Error) error {
	switch amqpErr.Code {
	case amqp.ConnectionForced:
		return ErrConnectionClosed
	case amqp.AccessRefused:
		return ErrAccessDenied
	case amqp.NotFound:
		reason := strings.ToLower(amqpErr.Reason)
		if strings.Contains(reason, "exchange") {
			return ErrExchangeNotFound
		}
		return ErrQueueNotFound
	case amqp.ResourceLocked:
		return ErrResourceLocked
	case amqp.PreconditionFailed:
		return ErrPreconditionFailed
	case amqp.ContentTooLarge:
		return ErrMessageTooLarge
	case amqp.NoRoute, amqp.NoConsumers:
		return ErrPublishFailed
	case amqp.ChannelError:
		return ErrChannelError
	case amqp.NotAllowed:
		return ErrNotAllowed
	case amqp.InternalError:
		return ErrInternalError
	case amqp.SyntaxError, amqp.CommandInvalid, amqp.FrameError, amqp.UnexpectedFrame:
		return ErrProtocolError
	default:
		if translated := translateByErrorMessage(strings.ToLower(amqpErr.Reason)); translated != nil {
			return translated
		}
		return ErrProtocolError
	}
}

// translateSyscallError maps syscall errors to errors
func translateSyscallError(syscallErr syscall.Errno) error {
	switch syscallErr {
	case syscall.ECONNREFUSED:
		return ErrConnectionFailed
	case syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE, syscall.ENOTCONN:
		return ErrConnectionLost
	case syscall.ETIMEDOUT:
		return ErrTimeout
	case syscall.EACCES, syscall.EPERM:
		return ErrAccessDenied
	default:
		return ErrNetworkError
	}
}

// translateByErrorMessage translates errors based on error message patterns (fallback)
func translateByErrorMessage(errMsg string) error {
	switch {
	case strings.Contains(errMsg, "connection refused"):
		return ErrConnectionFailed
	case strings.Contains(errMsg, "connection reset"), strings.Contains(errMsg, "connection lost"):
		return ErrConnectionLost
	case strings.Contains(errMsg, "connection closed"), strings.Contains(errMsg, "connection forced"):
		return ErrConnectionClosed
	case strings.Contains(errMsg, "channel closed"), strings.Contains(errMsg, "channel/connection is not open"):
		return ErrChannelClosed
	case strings.Contains(errMsg, "access refused"), strings.Contains(errMsg, "access denied"):
		return ErrAccessDenied
	case strings.Contains(errMsg, "login refused"), strings.Contains(errMsg, "authentication failed"):
		return ErrAuthenticationFailed
	case strings.Contains(errMsg, "precondition failed"), strings.Contains(errMsg, "inequivalent arg"):
		return ErrPreconditionFailed
	case strings.Contains(errMsg, "queue") && strings.Contains(errMsg, "not found"):
		return ErrQueueNotFound
	case strings.Contains(errMsg, "exchange") && strings.Contains(errMsg, "not found"):
		return ErrExchangeNotFound
	case strings.Contains(errMsg, "timeout"), strings.Contains(errMsg, "deadline exceeded"):
		return ErrTimeout
	case strings.Contains(errMsg, "canceled"), strings.Contains(errMsg, "cancelled"):
		return ErrCancelled
	default:
		return nil
	}
}

// IsRetryableError returns true if the error is transient: reconnecting and
// trying again may succeed.
func IsRetryableError(err error) bool {
	switch {
	case errors.Is(err, ErrConnectionFailed),
		errors.Is(err, ErrConnectionLost),
		errors.Is(err, ErrConnectionClosed),
		errors.Is(err, ErrChannelClosed),
		errors.Is(err, ErrChannelError),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrNetworkError),
		errors.Is(err, ErrInternalError):
		return true
	default:
		return false
	}
}

// IsConnectionError returns true if the error is connection-related
func IsConnectionError(err error) bool {
	switch {
	case errors.Is(err, ErrConnectionFailed),
		errors.Is(err, ErrConnectionLost),
		errors.Is(err, ErrConnectionClosed):
		return true
	default:
		return false
	}
}
