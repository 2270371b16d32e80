package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
)

// Subscriber is a plain at-least-once consumer without retry metadata: the
// handler's success acknowledges a delivery, a failure nacks it without
// requeue. With an exchange configured it declares the exchange and binds its
// queue, which gives fan-out when several subscribers bind their own queues to
// one fanout exchange.
type Subscriber struct {
	client  rabbit.Client
	cfg     SubscriberConfig
	handler Handler
	dedup   Deduplicator
	instrumentation
}

// NewSubscriber creates a Subscriber for cfg.Queue.
//
// Example:
//
//	sub, err := delivery.NewSubscriber(client, delivery.SubscriberConfig{
//		Queue:    "example2_queue",
//		Exchange: "example2_exchange",
//	}, handler)
func NewSubscriber(client rabbit.Client, cfg SubscriberConfig, handler Handler) (*Subscriber, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	if cfg.Queue == "" {
		return nil, ErrInvalidQueue
	}
	return &Subscriber{client: client, cfg: cfg.withDefaults(), handler: handler}, nil
}

// WithLogger attaches a logger and returns the subscriber for chaining.
func (s *Subscriber) WithLogger(logger Logger) *Subscriber {
	s.logger = logger
	return s
}

// WithTracer attaches a tracer and returns the subscriber for chaining.
func (s *Subscriber) WithTracer(tracer Tracer) *Subscriber {
	s.tracer = tracer
	return s
}

// WithObserver attaches an operation observer and returns the subscriber for chaining.
func (s *Subscriber) WithObserver(observer observability.Observer) *Subscriber {
	s.observer = observer
	return s
}

// WithDeduplicator attaches a store that suppresses handler runs for messages
// already acknowledged once.
func (s *Subscriber) WithDeduplicator(dedup Deduplicator) *Subscriber {
	s.dedup = dedup
	return s
}

// Run declares the topology and handles deliveries until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	if _, err := s.client.DeclareQueue(ctx, s.cfg.Queue, rabbit.QueueOptions{Durable: s.cfg.Durable}); err != nil {
		return fmt.Errorf("declare queue %q: %w", s.cfg.Queue, err)
	}
	if s.cfg.Exchange != "" {
		if err := s.client.DeclareExchange(ctx, s.cfg.Exchange, rabbit.ExchangeKind(s.cfg.ExchangeKind), true); err != nil {
			return fmt.Errorf("declare exchange %q: %w", s.cfg.Exchange, err)
		}
		if err := s.client.Bind(ctx, s.cfg.Exchange, s.cfg.Queue, s.cfg.RoutingKey); err != nil {
			return fmt.Errorf("bind queue %q to %q: %w", s.cfg.Queue, s.cfg.Exchange, err)
		}
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	s.logInfo(ctx, "Subscriber started", map[string]interface{}{
		"queue":    s.cfg.Queue,
		"exchange": s.cfg.Exchange,
	})

	for d := range s.client.Consume(consumeCtx, wg, s.cfg.Queue, s.cfg.Prefetch) {
		if err := s.HandleDelivery(context.WithoutCancel(ctx), d); err != nil {
			s.logError(ctx, "Subscriber stopped on broker failure", err, map[string]interface{}{
				"queue": s.cfg.Queue,
			})
			return err
		}
	}
	return nil
}

// HandleDelivery runs the handler and acks or nacks d. Retry headers are not
// required; the envelope passed to the handler has a zero retry count when they
// are missing.
func (s *Subscriber) HandleDelivery(ctx context.Context, d rabbit.Delivery) error {
	start := time.Now()
	headers := d.Header()

	ctx, span := s.startSpan(ctx, "delivery.subscribe", headers)
	defer span.End()

	env, _ := envelope.FromDelivery(d.Body(), headers, envelope.Route(d.Route()))
	size := int64(len(env.Body()))

	if isDuplicate(ctx, &s.instrumentation, s.dedup, s.cfg.Queue, env) {
		if err := d.AckMsg(); err != nil {
			return transportError("ack", s.cfg.Queue, err)
		}
		return nil
	}

	handlerErr := safeInvoke(ctx, s.handler, env)
	if handlerErr != nil {
		s.recordError(span, handlerErr)
		s.logWarn(ctx, "Handler failed, discarding message", handlerErr, map[string]interface{}{
			"queue":      s.cfg.Queue,
			"message_id": env.MessageID(),
		})
		if err := d.NackMsg(false); err != nil {
			err = transportError("nack", s.cfg.Queue, err)
			s.observe("nack", s.cfg.Queue, env.Origin().RoutingKey, time.Since(start), err, size)
			return err
		}
		s.observe("nack", s.cfg.Queue, env.Origin().RoutingKey, time.Since(start), nil, size)
		return nil
	}

	if err := d.AckMsg(); err != nil {
		err = transportError("ack", s.cfg.Queue, err)
		s.observe("ack", s.cfg.Queue, env.Origin().RoutingKey, time.Since(start), err, size)
		return err
	}
	s.observe("ack", s.cfg.Queue, env.Origin().RoutingKey, time.Since(start), nil, size)
	markHandled(ctx, &s.instrumentation, s.dedup, s.cfg.Queue, env)
	return nil
}
