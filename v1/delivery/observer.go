package delivery

import (
	"context"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"go.opentelemetry.io/otel/trace"
)

// traceHeaders are the W3C propagation keys copied between message headers and
// the span context.
var traceHeaders = []string{"traceparent", "tracestate", "baggage"}

// instrumentation bundles the optional logger, tracer and observer shared by the
// components of this package. Every hook is a no-op when unset.
type instrumentation struct {
	logger   Logger
	tracer   Tracer
	observer observability.Observer
}

func (i *instrumentation) observe(operation, resource, subResource string, duration time.Duration, err error, size int64) {
	if i.observer == nil {
		return
	}
	i.observer.ObserveOperation(observability.OperationContext{
		Component:   "delivery",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
	})
}

func (i *instrumentation) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if i.logger != nil {
		i.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (i *instrumentation) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if i.logger != nil {
		i.logger.WarnWithContext(ctx, msg, err, fields)
	}
}

func (i *instrumentation) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if i.logger != nil {
		i.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}

// startSpan continues the trace carried in headers, if any, and starts a span
// for handling one delivery. Without a tracer the returned span is a no-op.
func (i *instrumentation) startSpan(ctx context.Context, name string, headers map[string]interface{}) (context.Context, trace.Span) {
	if i.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}

	carrier := make(map[string]string, len(traceHeaders))
	for _, k := range traceHeaders {
		if v, ok := headers[k].(string); ok {
			carrier[k] = v
		}
	}
	if len(carrier) > 0 {
		ctx = i.tracer.SetCarrierOnContext(ctx, carrier)
	}
	return i.tracer.StartSpan(ctx, name)
}

func (i *instrumentation) recordError(span trace.Span, err error) {
	if i.tracer != nil && err != nil {
		i.tracer.RecordErrorOnSpan(span, err)
	}
}

// injectTrace writes the current trace context into headers.
func (i *instrumentation) injectTrace(ctx context.Context, headers map[string]interface{}) map[string]interface{} {
	if i.tracer == nil {
		return headers
	}
	for k, v := range i.tracer.GetCarrier(ctx) {
		headers[k] = v
	}
	return headers
}
