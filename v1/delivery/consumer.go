package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/retry"
	"go.uber.org/atomic"
)

// Reasons written to the x-death-reason header of dead-lettered messages.
const (
	ReasonRetriesExhausted  = "retries_exhausted"
	ReasonMalformedMetadata = "malformed_metadata"
	ReasonPermanentFailure  = "permanent_failure"
)

// Outcome is the terminal action a Consumer took for one delivery.
type Outcome int

const (
	// OutcomeAcked means the delivery was acknowledged.
	OutcomeAcked Outcome = iota + 1

	// OutcomeRetried means the delivery was rejected and a copy with an
	// incremented retry count was republished.
	OutcomeRetried

	// OutcomeDeadLettered means the delivery was nacked and a copy was published
	// to its dead-letter queue.
	OutcomeDeadLettered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAcked:
		return "acked"
	case OutcomeRetried:
		return "retried"
	case OutcomeDeadLettered:
		return "dead_lettered"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Consumer wraps a Handler with bounded retries and dead-lettering.
//
// Each delivery is settled exactly once: acknowledged, rejected and republished
// with retries+1, or nacked and published to the dead-letter queue. The retry
// count lives in the message headers, so consumers keep no per-message state
// and any number of them can share a queue.
type Consumer struct {
	client  rabbit.Client
	cfg     Config
	policy  retry.Policy
	handler Handler
	delayed *DelayedPublisher
	dedup   Deduplicator
	instrumentation

	// sleep implements RetryDelay. It is a plain timer, never a broker call.
	sleep func(time.Duration)

	running *atomic.Bool

	mu       sync.Mutex
	declared map[string]struct{}
}

// NewConsumer creates a Consumer reading cfg.Queue with handler.
//
// Example:
//
//	consumer, err := delivery.NewConsumer(client, delivery.Config{
//		Queue:           "example4",
//		MaxRetries:      3,
//		RetryDelay:      time.Second,
//		DeadLetterQueue: "dlx",
//	}, func(ctx context.Context, env envelope.Envelope) error {
//		return process(env.Body())
//	})
func NewConsumer(client rabbit.Client, cfg Config, handler Handler) (*Consumer, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	cfg = cfg.withDefaults()
	if cfg.Queue == "" {
		return nil, ErrInvalidQueue
	}

	policy, err := retry.NewPolicy(cfg.MaxRetries)
	if err != nil {
		return nil, err
	}

	delayed, err := NewDelayedPublisher(client, cfg.DelayedQueuePrefix)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		client:   client,
		cfg:      cfg,
		policy:   policy,
		handler:  handler,
		delayed:  delayed,
		sleep:    time.Sleep,
		running:  atomic.NewBool(false),
		declared: make(map[string]struct{}),
	}, nil
}

// WithLogger attaches a logger and returns the consumer for chaining.
func (c *Consumer) WithLogger(logger Logger) *Consumer {
	c.logger = logger
	c.delayed.logger = logger
	return c
}

// WithTracer attaches a tracer. Each delivery gets a span continuing the trace
// found in its headers, and republished messages carry the current context.
func (c *Consumer) WithTracer(tracer Tracer) *Consumer {
	c.tracer = tracer
	c.delayed.tracer = tracer
	return c
}

// WithObserver attaches an operation observer and returns the consumer for chaining.
func (c *Consumer) WithObserver(observer observability.Observer) *Consumer {
	c.observer = observer
	c.delayed.observer = observer
	return c
}

// WithDeduplicator attaches a store that suppresses handler runs for messages
// already acknowledged once.
func (c *Consumer) WithDeduplicator(dedup Deduplicator) *Consumer {
	c.dedup = dedup
	return c
}

// Queue returns the source queue.
func (c *Consumer) Queue() string {
	return c.cfg.Queue
}

// Run declares the source queue and handles its deliveries one at a time until
// ctx is cancelled or a broker failure occurs.
//
// Cancellation stops fetching new deliveries; a delivery already being handled
// completes its terminal action first. Run returns nil after cancellation and
// a *DeliveryTransportError, or a declaration error, otherwise.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	if _, err := c.client.DeclareQueue(ctx, c.cfg.Queue, rabbit.QueueOptions{Durable: c.cfg.Durable}); err != nil {
		return fmt.Errorf("declare queue %q: %w", c.cfg.Queue, err)
	}
	if c.cfg.BindExchange != "" {
		if err := c.client.Bind(ctx, c.cfg.BindExchange, c.cfg.Queue, c.cfg.Queue); err != nil {
			return fmt.Errorf("bind queue %q to %q: %w", c.cfg.Queue, c.cfg.BindExchange, err)
		}
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	c.logInfo(ctx, "Consumer started", map[string]interface{}{
		"queue":       c.cfg.Queue,
		"max_retries": c.policy.MaxRetries(),
		"prefetch":    c.cfg.Prefetch,
	})

	for d := range c.client.Consume(consumeCtx, wg, c.cfg.Queue, c.cfg.Prefetch) {
		if _, err := c.HandleDelivery(context.WithoutCancel(ctx), d); err != nil {
			c.logError(ctx, "Consumer stopped on broker failure", err, map[string]interface{}{
				"queue": c.cfg.Queue,
			})
			return err
		}
	}

	c.logInfo(ctx, "Consumer stopped", map[string]interface{}{"queue": c.cfg.Queue})
	return nil
}

// HandleDelivery runs the handler for d and settles it. The returned error is
// always a *DeliveryTransportError; handler failures are turned into retries
// or dead-letters and never returned.
func (c *Consumer) HandleDelivery(ctx context.Context, d rabbit.Delivery) (Outcome, error) {
	start := time.Now()
	headers := d.Header()

	ctx, span := c.startSpan(ctx, "delivery.handle", headers)
	defer span.End()

	env, err := envelope.FromDelivery(d.Body(), headers, envelope.Route(d.Route()))
	if err != nil {
		c.logWarn(ctx, "Malformed retry metadata, dead-lettering", err, map[string]interface{}{
			"queue":      c.cfg.Queue,
			"message_id": env.MessageID(),
		})
		env = env.WithRetryCount(c.policy.MaxRetries())
		outcome, err := c.deadLetter(ctx, d, env, ReasonMalformedMetadata, start)
		c.recordError(span, err)
		return outcome, err
	}

	if isDuplicate(ctx, &c.instrumentation, c.dedup, c.cfg.Queue, env) {
		outcome, err := c.ack(ctx, d, env, start, false)
		c.recordError(span, err)
		return outcome, err
	}

	handlerErr := safeInvoke(ctx, c.handler, env)
	if handlerErr != nil {
		c.recordError(span, handlerErr)
		c.logWarn(ctx, "Handler failed", handlerErr, map[string]interface{}{
			"queue":       c.cfg.Queue,
			"message_id":  env.MessageID(),
			"retry_count": env.RetryCount(),
		})
	}

	var outcome Outcome
	switch {
	case handlerErr == nil && !c.cfg.UnconditionalRetry:
		outcome, err = c.ack(ctx, d, env, start, true)
	case IsPermanent(handlerErr):
		outcome, err = c.deadLetter(ctx, d, env, ReasonPermanentFailure, start)
	case c.policy.Decide(env.RetryCount()) == retry.Retry:
		outcome, err = c.retry(ctx, d, env, start)
	case handlerErr == nil:
		// unconditional mode with the budget spent: the last attempt succeeded
		outcome, err = c.ack(ctx, d, env, start, true)
	default:
		outcome, err = c.deadLetter(ctx, d, env, ReasonRetriesExhausted, start)
	}
	c.recordError(span, err)
	return outcome, err
}

// safeInvoke calls handler, converting a panic into an error.
func safeInvoke(ctx context.Context, handler Handler, env envelope.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return handler(ctx, env)
}

func (c *Consumer) ack(ctx context.Context, d rabbit.Delivery, env envelope.Envelope, start time.Time, mark bool) (Outcome, error) {
	if err := d.AckMsg(); err != nil {
		err = transportError("ack", c.cfg.Queue, err)
		c.observe("ack", c.cfg.Queue, env.Origin().RoutingKey, time.Since(start), err, int64(len(env.Body())))
		return 0, err
	}
	c.observe("ack", c.cfg.Queue, env.Origin().RoutingKey, time.Since(start), nil, int64(len(env.Body())))

	if mark {
		markHandled(ctx, &c.instrumentation, c.dedup, c.cfg.Queue, env)
	}
	return OutcomeAcked, nil
}

// retry rejects d and republishes the next attempt, either to the origin route
// after RetryDelay or, with BrokerDelayedRetry, through a staging queue that
// forwards to the consumer's own queue.
func (c *Consumer) retry(ctx context.Context, d rabbit.Delivery, env envelope.Envelope, start time.Time) (Outcome, error) {
	next := env.NextAttempt()
	size := int64(len(env.Body()))
	headers := c.injectTrace(ctx, next.Headers())

	c.logInfo(ctx, "Retrying message", map[string]interface{}{
		"queue":       c.cfg.Queue,
		"message_id":  env.MessageID(),
		"retry_count": next.RetryCount(),
		"origin":      env.Origin().String(),
	})

	if c.cfg.BrokerDelayedRetry && c.cfg.RetryDelay > 0 {
		staging, err := c.delayed.declare(ctx, c.cfg.RetryDelay, c.cfg.Queue)
		if err != nil {
			return c.failRetry(transportError("declare", c.cfg.Queue, err), env, start)
		}
		if err := d.RejectMsg(false); err != nil {
			return c.failRetry(transportError("reject", c.cfg.Queue, err), env, start)
		}
		if err := c.delayed.publish(ctx, staging, next.Body(), headers); err != nil {
			return c.failRetry(transportError("publish", staging, err), env, start)
		}
		c.observe("retry", c.cfg.Queue, staging, time.Since(start), nil, size)
		return OutcomeRetried, nil
	}

	if err := d.RejectMsg(false); err != nil {
		return c.failRetry(transportError("reject", c.cfg.Queue, err), env, start)
	}
	if c.cfg.RetryDelay > 0 {
		c.sleep(c.cfg.RetryDelay)
	}

	origin := next.Origin()
	route := rabbit.Route{Exchange: origin.Exchange, RoutingKey: origin.RoutingKey}
	if err := c.client.Publish(ctx, route, next.Body(), headers); err != nil {
		return c.failRetry(transportError("publish", origin.String(), err), env, start)
	}
	c.observe("retry", c.cfg.Queue, origin.RoutingKey, time.Since(start), nil, size)
	return OutcomeRetried, nil
}

func (c *Consumer) failRetry(err error, env envelope.Envelope, start time.Time) (Outcome, error) {
	c.observe("retry", c.cfg.Queue, env.Origin().RoutingKey, time.Since(start), err, int64(len(env.Body())))
	return 0, err
}

// deadLetter nacks d and publishes env to its dead-letter queue through the
// default exchange. Messages without an x-dead-letter-queue header go to
// Config.DeadLetterQueue, which is never empty.
func (c *Consumer) deadLetter(ctx context.Context, d rabbit.Delivery, env envelope.Envelope, reason string, start time.Time) (Outcome, error) {
	size := int64(len(env.Body()))

	target := env.DeadLetterTarget()
	if target == "" {
		target = c.cfg.DeadLetterQueue
	}

	fail := func(err error) (Outcome, error) {
		c.observe("dead_letter", c.cfg.Queue, target, time.Since(start), err, size)
		return 0, err
	}

	if err := c.ensureQueue(ctx, target); err != nil {
		return fail(transportError("declare", target, err))
	}
	if err := d.NackMsg(false); err != nil {
		return fail(transportError("nack", c.cfg.Queue, err))
	}

	final := env.WithDeadLetterTarget(target).WithHeader(envelope.HeaderDeathReason, reason)
	headers := c.injectTrace(ctx, final.Headers())
	if err := c.client.Publish(ctx, rabbit.Route{RoutingKey: target}, final.Body(), headers); err != nil {
		return fail(transportError("publish", target, err))
	}

	c.logWarn(ctx, "Message dead-lettered", nil, map[string]interface{}{
		"queue":             c.cfg.Queue,
		"dead_letter_queue": target,
		"message_id":        env.MessageID(),
		"retry_count":       final.RetryCount(),
		"reason":            reason,
	})
	c.observe("dead_letter", c.cfg.Queue, target, time.Since(start), nil, size)
	return OutcomeDeadLettered, nil
}

// ensureQueue declares a dead-letter queue the first time this consumer uses it.
func (c *Consumer) ensureQueue(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.declared[name]; ok {
		return nil
	}
	if _, err := c.client.DeclareQueue(ctx, name, rabbit.QueueOptions{Durable: true}); err != nil {
		return err
	}
	c.declared[name] = struct{}{}
	return nil
}

// IsTransportError reports whether err came from the broker while settling a
// delivery.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrDeliveryTransport)
}
