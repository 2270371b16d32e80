package rabbit

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

//go:generate mockgen -source=interface.go -destination=mock_client.go -package=rabbit

// Client is the broker surface the delivery components depend on: topology
// declaration, confirmed publishing, consuming with a prefetch limit, and
// lifecycle management.
//
// This interface is implemented by the concrete *RabbitClient type.
type Client interface {
	// Topology

	// DeclareQueue declares (or re-declares) a queue and returns its state.
	// An empty name asks the broker to generate one.
	DeclareQueue(ctx context.Context, name string, opts QueueOptions) (Queue, error)

	// DeclareExchange declares an exchange of the given kind.
	DeclareExchange(ctx context.Context, name string, kind ExchangeKind, durable bool) error

	// Bind binds queue to exchange with the given routing key.
	Bind(ctx context.Context, exchange, queue, routingKey string) error

	// Publisher operations

	// Publish sends a message to route with optional headers and returns once the
	// broker confirmed it.
	Publish(ctx context.Context, route Route, msg []byte, headers ...map[string]interface{}) error

	// Consumer operations

	// Consume starts consuming queue with at most prefetch unacknowledged deliveries.
	// The returned channel is closed when ctx is cancelled or the client shuts down.
	Consume(ctx context.Context, wg *sync.WaitGroup, queue string, prefetch int) <-chan Delivery

	// Connection management

	// RetryConnection monitors the connection and automatically reconnects on failure.
	// This method should be run in a goroutine.
	RetryConnection(cfg Config)

	// Lifecycle

	// GracefulShutdown closes all RabbitMQ connections and channels cleanly.
	GracefulShutdown()
}

// Delivery is a consumed message. Exactly one of AckMsg, NackMsg or RejectMsg
// should be called per delivery.
type Delivery interface {
	// AckMsg acknowledges the message, removing it from the queue.
	AckMsg() error

	// NackMsg negatively acknowledges the message.
	NackMsg(requeue bool) error

	// RejectMsg rejects the message. With requeue false the broker discards it or
	// routes it to the queue's dead-letter exchange.
	RejectMsg(requeue bool) error

	// Body returns the message payload as a byte slice.
	Body() []byte

	// Header returns the message headers.
	Header() map[string]interface{}

	// Route returns the exchange and routing key the message was published with.
	Route() Route
}

// Route identifies a publish destination. An empty Exchange is the default
// exchange, which routes to the queue named by RoutingKey.
type Route struct {
	Exchange   string
	RoutingKey string
}

// ExchangeKind is the AMQP exchange type.
type ExchangeKind string

const (
	Direct ExchangeKind = "direct"
	Fanout ExchangeKind = "fanout"
	Topic  ExchangeKind = "topic"
)

// QueueOptions controls queue declaration.
type QueueOptions struct {
	Durable    bool
	AutoDelete bool
	Exclusive  bool

	// TTL sets x-message-ttl. Zero means messages never expire.
	TTL time.Duration

	// DeadLetterTarget sets x-dead-letter-routing-key; expired or rejected messages
	// are forwarded there through DeadLetterExchange.
	DeadLetterTarget string

	// DeadLetterExchange sets x-dead-letter-exchange. Empty is the default exchange,
	// so DeadLetterTarget is then a queue name.
	DeadLetterExchange string

	// Expires sets x-expires: the broker deletes the queue after it has been unused
	// for this long.
	Expires time.Duration
}

// Arguments renders the options into the x-arguments table passed to queue.declare.
func (o QueueOptions) Arguments() amqp.Table {
	args := amqp.Table{}
	if o.TTL > 0 {
		args["x-message-ttl"] = o.TTL.Milliseconds()
	}
	if o.DeadLetterTarget != "" {
		args["x-dead-letter-exchange"] = o.DeadLetterExchange
		args["x-dead-letter-routing-key"] = o.DeadLetterTarget
	}
	if o.Expires > 0 {
		args["x-expires"] = o.Expires.Milliseconds()
	}
	if len(args) == 0 {
		return nil
	}
	return args
}

// Queue is the broker's view of a declared queue.
type Queue struct {
	Name      string
	Messages  int
	Consumers int
}
