// Package envelope models a message payload together with the delivery metadata
// the retry pattern carries in AMQP headers.
//
// An Envelope is an immutable value. Methods that change metadata return a copy,
// so several in-flight copies of a logical message never alias each other.
package envelope

import (
	"errors"
	"fmt"
	"maps"
	"math"

	"github.com/google/uuid"
)

// Header names carried on the wire.
const (
	// HeaderRetries holds the number of attempts already made.
	HeaderRetries = "retries"

	// HeaderDeadLetterQueue names the terminal destination once retries are exhausted.
	HeaderDeadLetterQueue = "x-dead-letter-queue"

	// HeaderMessageID identifies the logical message across retries.
	HeaderMessageID = "x-message-id"

	// HeaderOriginExchange and HeaderOriginRoutingKey pin the route a message was
	// first delivered on.
	HeaderOriginExchange   = "x-origin-exchange"
	HeaderOriginRoutingKey = "x-origin-routing-key"

	// HeaderDeathReason records why a message was dead-lettered.
	HeaderDeathReason = "x-death-reason"
)

// ErrMalformedMetadata is returned when the retry header is missing or is not a
// non-negative integer.
var ErrMalformedMetadata = errors.New("malformed message metadata")

// Route identifies where a message is published: an exchange plus routing key.
// The default exchange is the empty string, in which case the routing key is the
// queue name.
type Route struct {
	Exchange   string
	RoutingKey string
}

// Queue returns a Route that delivers straight to the named queue through the
// default exchange.
func Queue(name string) Route {
	return Route{RoutingKey: name}
}

// String renders the route as "exchange/routing-key".
func (r Route) String() string {
	return r.Exchange + "/" + r.RoutingKey
}

// IsZero reports whether the route is unset.
func (r Route) IsZero() bool {
	return r.Exchange == "" && r.RoutingKey == ""
}

// Envelope is a message body plus its retry metadata.
type Envelope struct {
	body             []byte
	retryCount       int
	deadLetterTarget string
	messageID        string
	origin           Route
	extra            map[string]interface{}
}

// New creates the envelope for an original publish: retry count zero, a fresh
// message id, and the given dead-letter target (may be empty).
func New(body []byte, deadLetterTarget string) Envelope {
	return Envelope{
		body:             body,
		deadLetterTarget: deadLetterTarget,
		messageID:        uuid.NewString(),
	}
}

// FromDelivery rebuilds an envelope from a received message. route is the
// exchange and routing key the message arrived on; it becomes the origin unless
// the headers already pin one.
//
// If the retry header is absent or invalid the error wraps ErrMalformedMetadata.
// The returned envelope is still usable: body, dead-letter target, message id and
// origin are populated and the retry count is zero.
func FromDelivery(body []byte, headers map[string]interface{}, route Route) (Envelope, error) {
	env := Envelope{
		body:   body,
		origin: route,
		extra:  make(map[string]interface{}, len(headers)),
	}

	for k, v := range headers {
		switch k {
		case HeaderRetries:
		case HeaderDeadLetterQueue:
			env.deadLetterTarget, _ = v.(string)
		case HeaderMessageID:
			env.messageID, _ = v.(string)
		case HeaderOriginExchange:
			if s, ok := v.(string); ok {
				env.origin.Exchange = s
			}
		case HeaderOriginRoutingKey:
			if s, ok := v.(string); ok {
				env.origin.RoutingKey = s
			}
		default:
			env.extra[k] = v
		}
	}

	raw, ok := headers[HeaderRetries]
	if !ok {
		return env, fmt.Errorf("%w: missing %q header", ErrMalformedMetadata, HeaderRetries)
	}
	n, err := toRetryCount(raw)
	if err != nil {
		return env, err
	}
	env.retryCount = n
	return env, nil
}

// toRetryCount accepts every integer width the AMQP table codec can produce.
func toRetryCount(v interface{}) (int, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %q out of range: %d", ErrMalformedMetadata, HeaderRetries, x)
		}
		n = int64(x)
	default:
		return 0, fmt.Errorf("%w: %q has type %T", ErrMalformedMetadata, HeaderRetries, v)
	}

	if n < 0 {
		return 0, fmt.Errorf("%w: %q is negative: %d", ErrMalformedMetadata, HeaderRetries, n)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q out of range: %d", ErrMalformedMetadata, HeaderRetries, n)
	}
	return int(n), nil
}

// Body returns the opaque payload.
func (e Envelope) Body() []byte { return e.body }

// RetryCount returns the number of attempts already made.
func (e Envelope) RetryCount() int { return e.retryCount }

// DeadLetterTarget returns the terminal destination, empty if none was set.
func (e Envelope) DeadLetterTarget() string { return e.deadLetterTarget }

// MessageID returns the logical message id, empty for messages from producers
// that did not set one.
func (e Envelope) MessageID() string { return e.messageID }

// Origin returns the route the message was originally delivered on.
func (e Envelope) Origin() Route { return e.origin }

// Header returns a header that is not part of the retry metadata, such as a
// trace context entry.
func (e Envelope) Header(key string) (interface{}, bool) {
	v, ok := e.extra[key]
	return v, ok
}

// NextAttempt returns a copy with the retry count incremented by one.
func (e Envelope) NextAttempt() Envelope {
	return e.WithRetryCount(e.retryCount + 1)
}

// WithRetryCount returns a copy carrying the given retry count.
func (e Envelope) WithRetryCount(n int) Envelope {
	c := e.clone()
	c.retryCount = n
	return c
}

// WithDeadLetterTarget returns a copy carrying the given dead-letter target.
func (e Envelope) WithDeadLetterTarget(target string) Envelope {
	c := e.clone()
	c.deadLetterTarget = target
	return c
}

// WithOrigin returns a copy with the origin route replaced.
func (e Envelope) WithOrigin(route Route) Envelope {
	c := e.clone()
	c.origin = route
	return c
}

// WithHeader returns a copy with an additional non-metadata header. Setting a
// reserved metadata header this way has no effect on the metadata fields.
func (e Envelope) WithHeader(key string, value interface{}) Envelope {
	c := e.clone()
	c.extra[key] = value
	return c
}

func (e Envelope) clone() Envelope {
	c := e
	c.extra = make(map[string]interface{}, len(e.extra)+1)
	maps.Copy(c.extra, e.extra)
	return c
}

// Headers renders the envelope into a fresh AMQP header table. The retry count
// is encoded as a 32-bit integer so producers in other languages read it as a
// plain int.
func (e Envelope) Headers() map[string]interface{} {
	h := make(map[string]interface{}, len(e.extra)+5)
	for k, v := range e.extra {
		if isReserved(k) {
			continue
		}
		h[k] = v
	}

	h[HeaderRetries] = int32(e.retryCount)
	if e.deadLetterTarget != "" {
		h[HeaderDeadLetterQueue] = e.deadLetterTarget
	}
	if e.messageID != "" {
		h[HeaderMessageID] = e.messageID
	}
	if !e.origin.IsZero() {
		h[HeaderOriginExchange] = e.origin.Exchange
		h[HeaderOriginRoutingKey] = e.origin.RoutingKey
	}
	return h
}

func isReserved(key string) bool {
	switch key {
	case HeaderRetries, HeaderDeadLetterQueue, HeaderMessageID, HeaderOriginExchange, HeaderOriginRoutingKey:
		return true
	}
	return false
}
