package rabbit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerMessage implements the Delivery interface and wraps an AMQP delivery.
type ConsumerMessage struct {
	delivery amqp.Delivery
}

// DeclareQueue declares a queue with the given options. Re-declaring an existing
// queue with identical options is a no-op on the broker, which is how callers
// reuse queues.
//
// A declaration that conflicts with an existing queue closes the channel on the
// broker side; RetryConnection reopens it.
//
// Example:
//
//	q, err := client.DeclareQueue(ctx, "delayed.orders.2000ms", rabbit.QueueOptions{
//	    Durable:          true,
//	    TTL:              2 * time.Second,
//	    DeadLetterTarget: "orders",
//	})
func (rb *RabbitClient) DeclareQueue(ctx context.Context, name string, opts QueueOptions) (Queue, error) {
	start := time.Now()
	var declareErr error
	defer func() {
		rb.observeOperation("declare_queue", name, "", time.Since(start), declareErr, 0)
	}()

	if declareErr = ctx.Err(); declareErr != nil {
		return Queue{}, declareErr
	}

	ch, err := rb.channel()
	if err != nil {
		declareErr = wrapError(ErrDeclareFailed, err)
		return Queue{}, declareErr
	}

	q, err := ch.QueueDeclare(
		name,
		opts.Durable,
		opts.AutoDelete,
		opts.Exclusive,
		false, // NoWait
		opts.Arguments(),
	)
	if err != nil {
		declareErr = wrapError(ErrDeclareFailed, err)
		return Queue{}, declareErr
	}

	return Queue{Name: q.Name, Messages: q.Messages, Consumers: q.Consumers}, nil
}

// DeclareExchange declares an exchange. AutoDelete and Internal are always false.
func (rb *RabbitClient) DeclareExchange(ctx context.Context, name string, kind ExchangeKind, durable bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := rb.channel()
	if err != nil {
		return wrapError(ErrDeclareFailed, err)
	}

	err = ch.ExchangeDeclare(
		name,
		string(kind),
		durable,
		false, // AutoDelete
		false, // Internal
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		return wrapError(ErrDeclareFailed, err)
	}
	return nil
}

// Bind binds queue to exchange. For fanout exchanges the routing key is ignored.
func (rb *RabbitClient) Bind(ctx context.Context, exchange, queue, routingKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := rb.channel()
	if err != nil {
		return wrapError(ErrBindFailed, err)
	}

	if err = ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return wrapError(ErrBindFailed, err)
	}
	return nil
}

// consumeQueue consumes messages from a queue and hands them to the returned
// channel one at a time. The output channel is unbuffered so the client never
// holds more deliveries than the broker-side prefetch allows.
//
// The goroutine re-establishes the consumer when the underlying delivery channel
// closes (for example after a reconnect) and stops on context cancellation or
// shutdown. A delivery received but not yet handed over when the context is
// cancelled is returned to the queue.
func (rb *RabbitClient) consumeQueue(ctx context.Context, wg *sync.WaitGroup, queueName string, prefetch int) <-chan Delivery {
	outChan := make(chan Delivery)
	consumerTag := "rabbit-dlq-" + uuid.NewString()

	if prefetch <= 0 {
		prefetch = rb.cfg.Channel.PrefetchCount
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(outChan)
	outerLoop:
		for {
			select {
			case <-rb.shutdownSignal:
				rb.logInfo(ctx, "Stopping consumer due to shutdown signal", map[string]interface{}{
					"queue": queueName,
				})
				return
			case <-ctx.Done():
				rb.logInfo(ctx, "Stopping consumer due to context cancellation", map[string]interface{}{
					"queue": queueName,
					"error": ctx.Err().Error(),
				})
				return
			default:
			}

			ch, msgs, err := rb.startConsumer(queueName, consumerTag, prefetch)
			if err != nil {
				rb.logError(ctx, "Failed to establish consumer", map[string]interface{}{
					"queue": queueName,
					"error": err.Error(),
				})
				select {
				case <-time.After(rb.cfg.Channel.reconnectDelay()):
				case <-ctx.Done():
				case <-rb.shutdownSignal:
				}
				continue
			}

			for {
				select {
				case <-ctx.Done():
					rb.logInfo(ctx, "Stopping consumer due to context cancellation", map[string]interface{}{
						"queue": queueName,
						"error": ctx.Err().Error(),
					})
					_ = ch.Cancel(consumerTag, false)
					return
				case <-rb.shutdownSignal:
					rb.logInfo(ctx, "Stopping consumer due to shutdown signal", map[string]interface{}{
						"queue": queueName,
					})
					return
				case msg, ok := <-msgs:
					if !ok {
						continue outerLoop
					}

					rb.observeOperation("consume", queueName, msg.RoutingKey, 0, nil, int64(len(msg.Body)))

					select {
					case outChan <- &ConsumerMessage{delivery: msg}:
					case <-ctx.Done():
						_ = msg.Nack(false, true)
						_ = ch.Cancel(consumerTag, false)
						return
					case <-rb.shutdownSignal:
						return
					}
				}
			}
		}
	}()
	return outChan
}

func (rb *RabbitClient) startConsumer(queueName, consumerTag string, prefetch int) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := rb.channel()
	if err != nil {
		return nil, nil, err
	}

	if prefetch > 0 {
		if err = ch.Qos(prefetch, 0, false); err != nil {
			return nil, nil, wrapError(ErrQoSFailed, err)
		}
	}

	msgs, err := ch.Consume(
		queueName,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return nil, nil, wrapError(ErrConsumeFailed, err)
	}
	return ch, msgs, nil
}

// Consume starts consuming messages from queue with at most prefetch
// unacknowledged deliveries outstanding. A prefetch of 0 uses the configured
// Channel.PrefetchCount.
//
// Example:
//
//	wg := &sync.WaitGroup{}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	for msg := range client.Consume(ctx, wg, "example2_queue", 1) {
//	    fmt.Println("Received:", string(msg.Body()))
//	    if err := msg.AckMsg(); err != nil {
//	        log.Printf("Failed to ack message: %v", err)
//	    }
//	}
func (rb *RabbitClient) Consume(ctx context.Context, wg *sync.WaitGroup, queue string, prefetch int) <-chan Delivery {
	return rb.consumeQueue(ctx, wg, queue, prefetch)
}

// Publish sends a message to route and waits for the broker's publisher
// confirm. Headers are optional; only the first map is used. Messages are
// published persistent.
//
// The headers are how the retry metadata and trace context travel:
//
//	traceHeaders := tracerClient.GetCarrier(ctx)
//	err := client.Publish(ctx, rabbit.Route{RoutingKey: "example4"}, body, map[string]interface{}{
//	    "retries":             int32(0),
//	    "x-dead-letter-queue": "dlx",
//	    "traceparent":         traceHeaders["traceparent"],
//	})
//
// Returns an error wrapping ErrPublishFailed, or ErrMessageNacked when the broker
// refused the message.
func (rb *RabbitClient) Publish(ctx context.Context, route Route, msg []byte, headers ...map[string]interface{}) error {
	start := time.Now()
	var publishErr error
	msgSize := int64(len(msg))

	defer func() {
		rb.observeOperation("produce", route.Exchange, route.RoutingKey, time.Since(start), publishErr, msgSize)
	}()

	if publishErr = ctx.Err(); publishErr != nil {
		return publishErr
	}

	var header amqp.Table
	if len(headers) > 0 && headers[0] != nil {
		header = amqp.Table(headers[0])
	}

	ch, err := rb.channel()
	if err != nil {
		publishErr = wrapError(ErrPublishFailed, err)
		return publishErr
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		route.Exchange,
		route.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			Headers:      header,
			ContentType:  rb.cfg.Channel.ContentType,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         msg,
		},
	)
	if err != nil {
		publishErr = wrapError(ErrPublishFailed, err)
		return publishErr
	}

	// nil when the channel is not in confirm mode
	if confirm == nil {
		return nil
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		publishErr = wrapError(ErrPublishFailed, err)
		return publishErr
	}
	if !acked {
		publishErr = wrapError(ErrPublishFailed, ErrMessageNacked)
		return publishErr
	}
	return nil
}

// AckMsg acknowledges the message, informing RabbitMQ that the message
// has been successfully processed and can be removed from the queue.
func (m *ConsumerMessage) AckMsg() error {
	if err := m.delivery.Ack(false); err != nil {
		return wrapError(ErrAckFailed, err)
	}
	return nil
}

// NackMsg negatively acknowledges the message. If requeue is true, the message will be
// returned to the queue for redelivery; otherwise, it will be discarded
// or sent to a dead-letter exchange if configured.
func (m *ConsumerMessage) NackMsg(requeue bool) error {
	if err := m.delivery.Nack(false, requeue); err != nil {
		return wrapError(ErrNackFailed, err)
	}
	return nil
}

// RejectMsg rejects the message with basic.reject.
func (m *ConsumerMessage) RejectMsg(requeue bool) error {
	if err := m.delivery.Reject(requeue); err != nil {
		return wrapError(ErrRejectFailed, err)
	}
	return nil
}

// Body returns the message payload as a byte slice.
func (m *ConsumerMessage) Body() []byte {
	return m.delivery.Body
}

// Header returns the headers associated with the message.
// Integer values keep the width they were encoded with (int8 to int64).
func (m *ConsumerMessage) Header() map[string]interface{} {
	return m.delivery.Headers
}

// Route returns the exchange and routing key of the delivery.
func (m *ConsumerMessage) Route() Route {
	return Route{Exchange: m.delivery.Exchange, RoutingKey: m.delivery.RoutingKey}
}
