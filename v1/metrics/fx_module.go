package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/logger"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"go.uber.org/fx"
)

// FXModule defines the Fx module for the metrics package.
//
// The module provides *Metrics, the MetricsCollector interface and an
// observability.Observer, which the rabbit and delivery modules pick up as
// their optional observer. It also runs the /metrics HTTP server for the
// lifetime of the application.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    metrics.FXModule,
//	    fx.Provide(func() metrics.Config {
//	        return metrics.Config{Address: ":9090", ServiceName: "rabbitctl"}
//	    }),
//	)
var FXModule = fx.Module("metrics",
	fx.Provide(
		NewMetrics,
		fx.Annotate(
			func(m *Metrics) MetricsCollector { return m },
			fx.As(new(MetricsCollector)),
		),
		fx.Annotate(
			func(m *Metrics) observability.Observer { return m },
			fx.As(new(observability.Observer)),
		),
	),
	fx.Invoke(RegisterMetricsLifecycle),
)

// MetricsLifecycleParams groups the dependencies of RegisterMetricsLifecycle.
type MetricsLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Metrics   *Metrics
	Logger    *logger.LoggerClient `optional:"true"`
}

// RegisterMetricsLifecycle manages the startup and shutdown lifecycle
// of the Prometheus metrics HTTP server.
//
// Note: This function is automatically invoked by the FXModule and does not need
// to be called directly in application code.
func RegisterMetricsLifecycle(p MetricsLifecycleParams) {
	m, log := p.Metrics, p.Logger

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if log != nil {
					log.Info("Starting Prometheus metrics server", nil, map[string]interface{}{
						"address": m.Server.Addr,
					})
				}

				if err := m.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && log != nil {
					log.Error("Error starting Prometheus metrics server", err, nil)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if log != nil {
				log.Info("Shutting down Prometheus metrics server", nil, nil)
			}
			return m.Server.Shutdown(ctx)
		},
	})
}
