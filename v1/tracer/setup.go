package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Logger is the subset of the logger package used by the tracer.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
}

// Tracer owns the OpenTelemetry tracer provider and moves trace context in and
// out of message headers. It satisfies delivery.Tracer.
type Tracer struct {
	tracer     *trace.TracerProvider
	propagator propagation.TextMapPropagator
	logger     Logger
}

// NewClient creates the tracer provider, installs it as the global provider and
// sets the W3C trace context and baggage propagators.
//
// Example:
//
//	t, err := tracer.NewClient(tracer.Config{ServiceName: "rabbitctl", AppEnv: "dev"}, log)
//	if err != nil {
//		return err
//	}
//	consumer.WithTracer(t)
func NewClient(cfg Config, logger Logger) (*Tracer, error) {
	var options []trace.TracerProviderOption

	if cfg.EnableExport {
		exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient())
		if err != nil {
			return nil, fmt.Errorf("cannot initiate tracer exporter: %w", err)
		}
		options = append(options, trace.WithBatcher(exporter))
	}

	options = append(options, trace.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.AppEnv),
		attribute.String("environment", cfg.AppEnv),
	)))

	t := newTracer(trace.NewTracerProvider(options...), logger)
	otel.SetTracerProvider(t.tracer)
	otel.SetTextMapPropagator(t.propagator)
	return t, nil
}

func newTracer(tp *trace.TracerProvider, logger Logger) *Tracer {
	return &Tracer{
		tracer:     tp,
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
		logger:     logger,
	}
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.tracer == nil {
		return nil
	}
	return t.tracer.Shutdown(ctx)
}
