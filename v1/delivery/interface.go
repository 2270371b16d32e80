package delivery

import (
	"context"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -source=interface.go -destination=mock_interface.go -package=delivery

// Handler processes one message. A nil error means the message was handled.
// Wrap the error with Permanent to skip the remaining retries.
type Handler func(ctx context.Context, env envelope.Envelope) error

// Logger is the context-aware structured logger used by this package. It is
// satisfied by *logger.LoggerClient.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Tracer starts spans and moves trace context in and out of message headers.
// It is satisfied by *tracer.Tracer.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	RecordErrorOnSpan(span trace.Span, err error)
	GetCarrier(ctx context.Context) map[string]string
	SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context
}

// Deduplicator remembers which messages were already handled successfully.
// It is satisfied by *redis.RedisClient.
type Deduplicator interface {
	// Seen reports whether key was marked.
	Seen(ctx context.Context, key string) (bool, error)

	// Mark records key as handled.
	Mark(ctx context.Context, key string) error
}

// DeadLetterSink receives every message drained by a DeadLetterObserver.
// It is satisfied by *archive.Archive.
type DeadLetterSink interface {
	Store(ctx context.Context, dl DeadLetter) error
}

// DeadLetter is what a DeadLetterObserver learned about one dead-lettered message.
type DeadLetter struct {
	MessageID  string
	Queue      string
	Origin     envelope.Route
	RetryCount int
	Reason     string
	Body       []byte
	Headers    map[string]interface{}
	ReceivedAt time.Time

	// Malformed is set when the retry metadata could not be read; RetryCount is
	// then zero.
	Malformed bool
}
