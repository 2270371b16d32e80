package rabbit

import (
	"context"
	"sync"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"go.uber.org/fx"
)

// FXModule is an fx.Module that provides and configures the RabbitMQ client.
//
// The module provides:
// 1. *RabbitClient (concrete type) for direct use
// 2. Client interface for the delivery components
// 3. Lifecycle management: the reconnect loop on start, graceful shutdown on stop
//
// Usage:
//
//	app := fx.New(
//	    rabbit.FXModule,
//	    fx.Provide(func() rabbit.Config { return cfg }),
//	)
var FXModule = fx.Module("rabbit",
	fx.Provide(
		NewClientWithDI,
		fx.Annotate(
			func(r *RabbitClient) Client { return r },
			fx.As(new(Client)),
		),
	),
	fx.Invoke(RegisterRabbitLifecycle),
)

// RabbitParams groups the dependencies needed to create a Rabbit client
type RabbitParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI creates a new RabbitMQ client using dependency injection.
// Logger and Observer are optional; without a logger the client falls back to
// the standard library log package.
func NewClientWithDI(params RabbitParams) (*RabbitClient, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}

	if params.Logger != nil {
		client.WithLogger(params.Logger)
	}
	if params.Observer != nil {
		client.WithObserver(params.Observer)
	}

	return client, nil
}

// RabbitLifecycleParams groups the dependencies needed for RabbitMQ lifecycle management
type RabbitLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *RabbitClient
	Config    Config
}

// RegisterRabbitLifecycle starts the reconnect loop when the application starts and
// shuts the client down when it stops. OnStop waits for the loop to exit.
func RegisterRabbitLifecycle(params RabbitLifecycleParams) {
	wg := &sync.WaitGroup{}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wg.Add(1)
			go func(cfg Config) {
				defer wg.Done()
				params.Client.RetryConnection(cfg)
			}(params.Config)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			params.Client.GracefulShutdown()
			wg.Wait()
			return nil
		},
	})
}

// GracefulShutdown signals every consumer goroutine and the reconnect loop to
// stop, then closes the channel and the connection. It is safe to call more than
// once. Close errors are logged, not returned.
func (rb *RabbitClient) GracefulShutdown() {
	rb.closeShutdownOnce.Do(func() {
		close(rb.shutdownSignal)
	})

	rb.mu.Lock()
	defer rb.mu.Unlock()

	ctx := context.Background()
	rb.logInfo(ctx, "Shutting down RabbitMQ client", nil)

	if rb.Channel != nil && !rb.Channel.IsClosed() {
		if err := rb.Channel.Close(); err != nil {
			rb.logWarn(ctx, "Failed to close rabbit channel", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	if rb.conn != nil && !rb.conn.IsClosed() {
		if err := rb.conn.Close(); err != nil {
			rb.logWarn(ctx, "Failed to close rabbit connection", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
