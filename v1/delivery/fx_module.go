package delivery

import (
	"context"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
	"go.uber.org/fx"
)

// RunnersGroup is the fx value group collected by RegisterRunnerLifecycle.
const RunnersGroup = `group:"delivery_runners"`

// FXModule provides the delivery components and runs every Runner in the
// "delivery_runners" group for the lifetime of the application.
//
// The constructors are lazy: a Consumer is only built when something depends
// on it, and it additionally needs a Config and a Handler in the graph.
//
// Usage:
//
//	app := fx.New(
//	    rabbit.FXModule,
//	    delivery.FXModule,
//	    fx.Provide(
//	        func() delivery.Config { return delivery.Config{Queue: "example4", DeadLetterQueue: "dlx"} },
//	        func() delivery.Handler { return handle },
//	        delivery.AsRunner(func(c *delivery.Consumer) *delivery.Consumer { return c }),
//	    ),
//	)
var FXModule = fx.Module("delivery",
	fx.Provide(
		NewDelayedPublisherWithDI,
		NewConsumerWithDI,
		NewDeadLetterObserverWithDI,
	),
	fx.Invoke(RegisterRunnerLifecycle),
)

// AsRunner annotates a constructor so its result joins the runners group.
func AsRunner(f any) any {
	return fx.Annotate(f, fx.As(new(Runner)), fx.ResultTags(RunnersGroup))
}

// Instrumentation groups the optional hooks every component accepts.
type Instrumentation struct {
	fx.In

	Logger   Logger                 `optional:"true"`
	Tracer   Tracer                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// ConsumerParams groups the dependencies of a Consumer.
type ConsumerParams struct {
	fx.In
	Instrumentation

	Client       rabbit.Client
	Config       Config
	Handler      Handler
	Deduplicator Deduplicator `optional:"true"`
}

// NewConsumerWithDI creates a Consumer using dependency injection.
func NewConsumerWithDI(p ConsumerParams) (*Consumer, error) {
	c, err := NewConsumer(p.Client, p.Config, p.Handler)
	if err != nil {
		return nil, err
	}
	return c.WithLogger(p.Logger).WithTracer(p.Tracer).WithObserver(p.Observer).WithDeduplicator(p.Deduplicator), nil
}

// DeadLetterObserverParams groups the dependencies of a DeadLetterObserver.
type DeadLetterObserverParams struct {
	fx.In
	Instrumentation

	Client rabbit.Client
	Config ObserverConfig
	Sink   DeadLetterSink `optional:"true"`
}

// NewDeadLetterObserverWithDI creates a DeadLetterObserver using dependency injection.
func NewDeadLetterObserverWithDI(p DeadLetterObserverParams) (*DeadLetterObserver, error) {
	o, err := NewDeadLetterObserver(p.Client, p.Config)
	if err != nil {
		return nil, err
	}
	return o.WithLogger(p.Logger).WithTracer(p.Tracer).WithObserver(p.Observer).WithSink(p.Sink), nil
}

// DelayedPublisherParams groups the dependencies of a DelayedPublisher.
type DelayedPublisherParams struct {
	fx.In
	Instrumentation

	Client rabbit.Client
	Config Config `optional:"true"`
}

// NewDelayedPublisherWithDI creates a DelayedPublisher using the staging queue
// prefix from Config, if one is provided.
func NewDelayedPublisherWithDI(p DelayedPublisherParams) (*DelayedPublisher, error) {
	pub, err := NewDelayedPublisher(p.Client, p.Config.DelayedQueuePrefix)
	if err != nil {
		return nil, err
	}
	return pub.WithLogger(p.Logger).WithTracer(p.Tracer).WithObserver(p.Observer), nil
}

// RunnerLifecycleParams groups the dependencies of RegisterRunnerLifecycle.
type RunnerLifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Runners    []Runner `group:"delivery_runners"`
	Logger     Logger   `optional:"true"`
}

// RegisterRunnerLifecycle starts all runners with RunAll when the application
// starts. OnStop cancels them and waits until the in-flight deliveries are
// settled. A runner failure shuts the application down with exit code 1.
func RegisterRunnerLifecycle(p RunnerLifecycleParams) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	inst := &instrumentation{logger: p.Logger}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := RunAll(ctx, p.Runners...); err != nil {
					inst.logError(ctx, "Delivery runner failed, shutting down", err, nil)
					_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
