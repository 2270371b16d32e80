package redis

import (
	"context"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"go.uber.org/fx"
)

// FXModule provides *RedisClient, pings it on start and closes it on stop.
//
// Usage:
//
//	app := fx.New(
//	    redis.FXModule,
//	    fx.Provide(func() redis.Config { return redis.Config{Address: "localhost:6379"} }),
//	    fx.Provide(func(c *redis.RedisClient) delivery.Deduplicator { return c }),
//	)
var FXModule = fx.Module("redis",
	fx.Provide(
		NewClientWithDI,
	),
	fx.Invoke(RegisterRedisLifecycle),
)

// RedisParams groups the dependencies needed to create a Redis client.
type RedisParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI creates a Redis client using dependency injection.
func NewClientWithDI(params RedisParams) (*RedisClient, error) {
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

// RedisLifecycleParams groups the dependencies for Redis lifecycle management.
type RedisLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *RedisClient
}

// RegisterRedisLifecycle pings Redis on start, failing the start when it is
// unreachable, and closes the client on stop.
func RegisterRedisLifecycle(params RedisLifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := params.Client.Ping(ctx); err != nil {
				if params.Client.logger != nil {
					params.Client.logger.Error("Failed to ping Redis on startup", err, nil)
				}
				return err
			}
			if params.Client.logger != nil {
				params.Client.logger.Info("Redis client started and healthy", nil, nil)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return params.Client.Close()
		},
	})
}
