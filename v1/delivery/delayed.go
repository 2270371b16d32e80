package delivery

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
)

// DelayedPublisher delivers a message to a destination queue no earlier than a
// given delay, using only broker-native features: the message is parked in a
// staging queue whose x-message-ttl equals the delay and whose dead-letter
// route points at the destination. Nothing ever consumes a staging queue; the
// broker forwards each message when it expires.
//
// Staging queues are named "<prefix>.<destination>.<ms>ms" so every
// (destination, delay) pair shares one queue. They are durable and carry an
// x-expires of delay plus five minutes, after which the broker deletes them
// once idle.
type DelayedPublisher struct {
	client rabbit.Client
	prefix string
	instrumentation
}

// NewDelayedPublisher creates a publisher using client. An empty prefix uses
// "delayed".
func NewDelayedPublisher(client rabbit.Client, prefix string) (*DelayedPublisher, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if prefix == "" {
		prefix = DefaultDelayedQueuePrefix
	}
	return &DelayedPublisher{client: client, prefix: prefix}, nil
}

// WithLogger attaches a logger and returns the publisher for chaining.
func (p *DelayedPublisher) WithLogger(logger Logger) *DelayedPublisher {
	p.logger = logger
	return p
}

// WithTracer attaches a tracer whose context is injected into published headers.
func (p *DelayedPublisher) WithTracer(tracer Tracer) *DelayedPublisher {
	p.tracer = tracer
	return p
}

// WithObserver attaches an operation observer and returns the publisher for chaining.
func (p *DelayedPublisher) WithObserver(observer observability.Observer) *DelayedPublisher {
	p.observer = observer
	return p
}

// StagingQueueName returns the staging queue used for destination and delay.
// The delay is rendered in whole milliseconds.
func StagingQueueName(prefix, destination string, delay time.Duration) string {
	return fmt.Sprintf("%s.%s.%dms", prefix, destination, delay.Milliseconds())
}

// PublishDelayed publishes body so that it lands on destination after delay.
// headers, if given, travel with the message and survive the forward.
//
// It returns once the broker confirmed the publish into the staging queue.
// Delays are truncated to whole milliseconds; anything below one millisecond
// fails with ErrInvalidDelay, an empty destination with ErrInvalidDestination.
// Broker failures wrap rabbit.ErrDeclareFailed or rabbit.ErrPublishFailed.
//
// Example:
//
//	err := publisher.PublishDelayed(ctx, []byte(`{"id":42}`), 2*time.Second, "orders")
func (p *DelayedPublisher) PublishDelayed(ctx context.Context, body []byte, delay time.Duration, destination string, headers ...map[string]interface{}) error {
	start := time.Now()

	var header map[string]interface{}
	if len(headers) > 0 {
		header = headers[0]
	}

	staging, err := p.declare(ctx, delay, destination)
	if err == nil {
		err = p.publish(ctx, staging, body, header)
	}
	p.observe("delayed_publish", destination, staging, time.Since(start), err, int64(len(body)))
	if err != nil {
		return err
	}

	p.logInfo(ctx, "Message parked for delayed delivery", map[string]interface{}{
		"destination":   destination,
		"staging_queue": staging,
		"delay_ms":      delay.Milliseconds(),
	})
	return nil
}

// declare validates the request and declares its staging queue. Re-declaring an
// existing staging queue with the same arguments is a no-op on the broker.
func (p *DelayedPublisher) declare(ctx context.Context, delay time.Duration, destination string) (string, error) {
	delay = delay.Truncate(time.Millisecond)
	if delay <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidDelay, delay)
	}
	if destination == "" {
		return "", ErrInvalidDestination
	}

	name := StagingQueueName(p.prefix, destination, delay)
	q, err := p.client.DeclareQueue(ctx, name, rabbit.QueueOptions{
		Durable:          true,
		TTL:              delay,
		DeadLetterTarget: destination,
		Expires:          delay + stagingQueueGrace,
	})
	if err != nil {
		return "", fmt.Errorf("declare staging queue %q: %w", name, err)
	}
	if q.Name != "" {
		name = q.Name
	}
	return name, nil
}

func (p *DelayedPublisher) publish(ctx context.Context, staging string, body []byte, headers map[string]interface{}) error {
	h := make(map[string]interface{}, len(headers)+2)
	maps.Copy(h, headers)
	h = p.injectTrace(ctx, h)

	if err := p.client.Publish(ctx, rabbit.Route{RoutingKey: staging}, body, h); err != nil {
		return fmt.Errorf("publish to staging queue %q: %w", staging, err)
	}
	return nil
}
