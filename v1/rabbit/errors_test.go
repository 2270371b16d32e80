package rabbit

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"access refused", &amqp.Error{Code: amqp.AccessRefused, Reason: "ACCESS_REFUSED"}, ErrAccessDenied},
		{"exchange not found", &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange 'x'"}, ErrExchangeNotFound},
		{"queue not found", &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue 'q'"}, ErrQueueNotFound},
		{"inequivalent arg", &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - inequivalent arg 'x-message-ttl'"}, ErrPreconditionFailed},
		{"connection forced", &amqp.Error{Code: amqp.ConnectionForced}, ErrConnectionClosed},
		{"closed", amqp.ErrClosed, ErrChannelClosed},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), ErrConnectionFailed},
		{"reset", syscall.ECONNRESET, ErrConnectionLost},
		{"deadline message", errors.New("context deadline exceeded"), ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestTranslateErrorUnknownIsUnchanged(t *testing.T) {
	err := errors.New("something odd")
	assert.Same(t, err, TranslateError(err))
}

func TestWrapError(t *testing.T) {
	err := wrapError(ErrPublishFailed, amqp.ErrClosed)
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.ErrorIs(t, err, amqp.ErrClosed)

	err = wrapError(ErrDeclareFailed, context.Canceled)
	assert.ErrorIs(t, err, ErrDeclareFailed)
	assert.ErrorIs(t, err, context.Canceled)

	err = wrapError(ErrPublishFailed, ErrMessageNacked)
	assert.ErrorIs(t, err, ErrMessageNacked)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(wrapError(ErrPublishFailed, amqp.ErrClosed)))
	assert.True(t, IsRetryableError(ErrTimeout))
	assert.False(t, IsRetryableError(ErrAccessDenied))
	assert.False(t, IsRetryableError(nil))

	assert.True(t, IsConnectionError(ErrConnectionLost))
	assert.False(t, IsConnectionError(ErrChannelClosed))
}
