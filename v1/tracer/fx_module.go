package tracer

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Tracer and flushes it on shutdown.
//
// Dependencies required by this module:
// - A tracer.Config and a tracer.Logger must be available in the container
var FXModule = fx.Module("tracer",
	fx.Provide(
		NewClient,
	),
	fx.Invoke(RegisterTracerLifecycle),
)

// RegisterTracerLifecycle shuts the tracer provider down when the application stops.
func RegisterTracerLifecycle(lc fx.Lifecycle, tracer *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if tracer.logger != nil {
				tracer.logger.Info("shutting down tracer...", nil, nil)
			}
			if tracer.tracer == nil {
				if tracer.logger != nil {
					tracer.logger.Warn("tracer was nil during shutdown", nil, nil)
				}
				return nil
			}
			return tracer.Shutdown(ctx)
		},
	})
}
