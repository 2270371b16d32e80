package rabbit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitClient is a client for interacting with RabbitMQ.
// It owns one connection and one channel, publishes with broker confirms, and
// re-establishes the connection when RetryConnection is running.
type RabbitClient struct {
	// cfg stores the configuration for this RabbitMQ client
	cfg Config

	// Channel is the AMQP channel used for publishing and consuming messages.
	Channel *amqp.Channel

	// conn is the underlying AMQP connection to the RabbitMQ server
	conn *amqp.Connection

	// mu protects concurrent access to connection and channel
	mu sync.RWMutex

	// shutdownSignal is closed when the client is being shut down
	shutdownSignal chan struct{}

	closeShutdownOnce sync.Once

	// connWatches counts NotifyClose listeners RetryConnection registered on
	// the current connection.
	connWatches int

	logger   Logger
	observer observability.Observer
}

// NewClient creates and initializes a new RabbitMQ client with the provided configuration.
// It dials the broker and opens a channel in publisher-confirm mode.
//
// Returns a new RabbitClient instance that is ready to use, or an error wrapping
// ErrConnectionFailed.
//
// Example:
//
//	client, err := rabbit.NewClient(rabbit.Config{
//		Connection: rabbit.Connection{URI: os.Getenv("AMQP_URI")},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.GracefulShutdown()
func NewClient(config Config) (*RabbitClient, error) {
	con, err := newConnection(config)
	if err != nil {
		return nil, err
	}

	ch, err := connectToChannel(con, config)
	if err != nil {
		_ = con.Close()
		return nil, err
	}

	return &RabbitClient{
		cfg:            config,
		conn:           con,
		Channel:        ch,
		shutdownSignal: make(chan struct{}),
	}, nil
}

// WithLogger attaches a logger and returns the client for chaining.
func (rb *RabbitClient) WithLogger(logger Logger) *RabbitClient {
	rb.logger = logger
	return rb
}

// WithObserver attaches an operation observer and returns the client for chaining.
func (rb *RabbitClient) WithObserver(observer observability.Observer) *RabbitClient {
	rb.observer = observer
	return rb
}

// connectToChannel opens a channel on the connection and enables publisher confirms.
// QoS is applied per consumer in Consume.
func connectToChannel(conn *amqp.Connection, cfg Config) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create channel: %w", ErrChannelError, err)
	}

	if err = ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%w: failed to enable publisher confirms: %w", ErrChannelError, err)
	}

	if cfg.Channel.PrefetchCount > 0 {
		if err = ch.Qos(cfg.Channel.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%w: %w", ErrQoSFailed, err)
		}
	}

	return ch, nil
}

// newConnection dials RabbitMQ using the configured URI. A 2-second heartbeat is
// used unless configured otherwise so dropped connections are noticed quickly.
func newConnection(cfg Config) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(cfg.Connection.address(), amqp.Config{
		Heartbeat: cfg.Connection.heartbeat(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return conn, nil
}

// RetryConnection continuously monitors the RabbitMQ connection and channel and
// re-establishes them if they fail. This method is typically run in a goroutine.
//
// A closed channel on a live connection (for example after a failed queue
// declaration) only reopens the channel; a closed connection redials. The loop ends
// when GracefulShutdown is called.
func (rb *RabbitClient) RetryConnection(cfg Config) {
	ctx := context.Background()
	var connClosed chan *amqp.Error
outerLoop:
	for {
		rb.mu.Lock()
		if connClosed == nil {
			connClosed = rb.conn.NotifyClose(make(chan *amqp.Error, 1))
			rb.connWatches++
		}
		chanClosed := rb.Channel.NotifyClose(make(chan *amqp.Error, 1))
		rb.mu.Unlock()

		var reason *amqp.Error
		select {
		case <-rb.shutdownSignal:
			rb.logInfo(ctx, "Stopping RetryConnection loop due to shutdown signal", nil)
			return
		case reason = <-connClosed:
		case reason = <-chanClosed:
		}

		select {
		case <-rb.shutdownSignal:
			rb.logInfo(ctx, "Stopping RetryConnection loop due to shutdown signal", nil)
			return
		default:
		}

		rb.logWarn(ctx, "RabbitMQ channel or connection closed, re-establishing", map[string]interface{}{
			"reason": fmt.Sprint(reason),
		})

		for {
			select {
			case <-rb.shutdownSignal:
				rb.logInfo(ctx, "Stopping RetryConnection loop due to shutdown signal", nil)
				return
			default:
			}

			redialed, err := rb.reestablish(cfg)
			if redialed {
				connClosed = nil
			}
			if err != nil {
				rb.logError(ctx, "RabbitMQ reconnection failed", map[string]interface{}{
					"error": err.Error(),
				})
				time.Sleep(cfg.Channel.reconnectDelay() * 10)
				continue
			}

			rb.logInfo(ctx, "Successfully reconnected to RabbitMQ", map[string]interface{}{
				"redialed": redialed,
			})
			continue outerLoop
		}
	}
}

// reestablish reopens the channel, redialing first if the connection is gone.
// It reports whether a new connection was dialed.
func (rb *RabbitClient) reestablish(cfg Config) (bool, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	redialed := false
	if rb.conn == nil || rb.conn.IsClosed() {
		conn, err := newConnection(cfg)
		if err != nil {
			return false, err
		}
		rb.conn = conn
		rb.connWatches = 0
		redialed = true
	}

	if rb.Channel != nil && !rb.Channel.IsClosed() {
		_ = rb.Channel.Close()
	}
	ch, err := connectToChannel(rb.conn, cfg)
	if err != nil {
		return redialed, err
	}
	rb.Channel = ch
	return redialed, nil
}

// channel returns the current channel under the read lock.
func (rb *RabbitClient) channel() (*amqp.Channel, error) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.Channel == nil || rb.Channel.IsClosed() {
		return nil, ErrChannelClosed
	}
	return rb.Channel, nil
}

// logInfo, logWarn and logError fall back to the standard logger when no
// structured logger was attached, so the client is usable without fx.
func (rb *RabbitClient) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.InfoWithContext(ctx, msg, nil, fields)
		return
	}
	log.Printf("INFO: %s %v", msg, fields)
}

func (rb *RabbitClient) logWarn(ctx context.Context, msg string, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.WarnWithContext(ctx, msg, nil, fields)
		return
	}
	log.Printf("WARNING: %s %v", msg, fields)
}

func (rb *RabbitClient) logError(ctx context.Context, msg string, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.ErrorWithContext(ctx, msg, nil, fields)
		return
	}
	log.Printf("ERROR: %s %v", msg, fields)
}
