package delivery

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
	"go.uber.org/atomic"
)

// DeadLetterObserver drains a dead-letter queue for diagnostics. Every message
// is logged, optionally handed to a DeadLetterSink, and acknowledged. Nothing
// here ever requeues: the messages already exhausted their retries.
type DeadLetterObserver struct {
	client rabbit.Client
	cfg    ObserverConfig
	sink   DeadLetterSink
	instrumentation

	now     func() time.Time
	running *atomic.Bool
}

// NewDeadLetterObserver creates an observer for cfg.Queue ("dlx" when empty).
func NewDeadLetterObserver(client rabbit.Client, cfg ObserverConfig) (*DeadLetterObserver, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &DeadLetterObserver{
		client:  client,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		running: atomic.NewBool(false),
	}, nil
}

// WithSink attaches a sink that receives every observed message.
func (o *DeadLetterObserver) WithSink(sink DeadLetterSink) *DeadLetterObserver {
	o.sink = sink
	return o
}

// WithLogger attaches a logger and returns the observer for chaining.
func (o *DeadLetterObserver) WithLogger(logger Logger) *DeadLetterObserver {
	o.logger = logger
	return o
}

// WithTracer attaches a tracer and returns the observer for chaining.
func (o *DeadLetterObserver) WithTracer(tracer Tracer) *DeadLetterObserver {
	o.tracer = tracer
	return o
}

// WithObserver attaches an operation observer and returns the observer for chaining.
func (o *DeadLetterObserver) WithObserver(observer observability.Observer) *DeadLetterObserver {
	o.observer = observer
	return o
}

// Queue returns the drained dead-letter queue.
func (o *DeadLetterObserver) Queue() string {
	return o.cfg.Queue
}

// Run declares the dead-letter queue (durable) and observes its messages until
// ctx is cancelled. Only a failed acknowledgement stops it early.
func (o *DeadLetterObserver) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	if _, err := o.client.DeclareQueue(ctx, o.cfg.Queue, rabbit.QueueOptions{Durable: true}); err != nil {
		return fmt.Errorf("declare queue %q: %w", o.cfg.Queue, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	o.logInfo(ctx, "Dead-letter observer started", map[string]interface{}{"queue": o.cfg.Queue})

	for d := range o.client.Consume(consumeCtx, wg, o.cfg.Queue, o.cfg.Prefetch) {
		if err := o.Observe(context.WithoutCancel(ctx), d); err != nil {
			o.logError(ctx, "Dead-letter observer stopped on broker failure", err, map[string]interface{}{
				"queue": o.cfg.Queue,
			})
			return err
		}
	}
	return nil
}

// safeStore calls sink, converting a panic into an error.
func safeStore(ctx context.Context, sink DeadLetterSink, dl DeadLetter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanic, r)
		}
	}()
	return sink.Store(ctx, dl)
}

// Observe inspects one dead-lettered delivery and acknowledges it.
//
// Metadata is read leniently: a message without a valid retries header is
// still logged and stored, marked Malformed. Sink failures and panics are logged. The
// only error returned is a *DeliveryTransportError from the acknowledgement.
func (o *DeadLetterObserver) Observe(ctx context.Context, d rabbit.Delivery) error {
	start := time.Now()
	headers := d.Header()

	ctx, span := o.startSpan(ctx, "delivery.observe_dead_letter", headers)
	defer span.End()

	env, parseErr := envelope.FromDelivery(d.Body(), headers, envelope.Route(d.Route()))
	reason, _ := env.Header(envelope.HeaderDeathReason)
	reasonText, _ := reason.(string)

	dl := DeadLetter{
		MessageID:  env.MessageID(),
		Queue:      o.cfg.Queue,
		Origin:     env.Origin(),
		RetryCount: env.RetryCount(),
		Reason:     reasonText,
		Body:       env.Body(),
		Headers:    maps.Clone(headers),
		ReceivedAt: o.now(),
		Malformed:  parseErr != nil,
	}

	o.logWarn(ctx, "Dead-lettered message received", parseErr, map[string]interface{}{
		"queue":       o.cfg.Queue,
		"message_id":  dl.MessageID,
		"retry_count": dl.RetryCount,
		"origin":      dl.Origin.String(),
		"reason":      dl.Reason,
		"body_size":   len(dl.Body),
		"malformed":   dl.Malformed,
	})

	if o.sink != nil {
		if err := safeStore(ctx, o.sink, dl); err != nil {
			o.recordError(span, err)
			o.logError(ctx, "Failed to store dead-lettered message", err, map[string]interface{}{
				"queue":      o.cfg.Queue,
				"message_id": dl.MessageID,
			})
		}
	}

	if err := d.AckMsg(); err != nil {
		err = transportError("ack", o.cfg.Queue, err)
		o.recordError(span, err)
		o.observe("observe", o.cfg.Queue, dl.Origin.RoutingKey, time.Since(start), err, int64(len(dl.Body)))
		return err
	}
	o.observe("observe", o.cfg.Queue, dl.Origin.RoutingKey, time.Since(start), nil, int64(len(dl.Body)))
	return nil
}
