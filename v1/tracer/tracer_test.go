package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return newTracer(tp, nil), recorder
}

func TestCarrierRoundTripContinuesTrace(t *testing.T) {
	tr, recorder := newRecordingTracer(t)

	ctx, producer := tr.StartSpan(context.Background(), "produce")
	carrier := tr.GetCarrier(ctx)
	producer.End()

	require.Contains(t, carrier, "traceparent")

	consumerCtx := tr.SetCarrierOnContext(context.Background(), carrier)
	_, consumer := tr.StartSpan(consumerCtx, "consume")
	consumer.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[0].SpanContext().TraceID(), spans[1].SpanContext().TraceID())
	assert.Equal(t, spans[0].SpanContext().SpanID(), spans[1].Parent().SpanID())
}

func TestGetCarrierWithoutSpanIsEmpty(t *testing.T) {
	tr, _ := newRecordingTracer(t)
	assert.Empty(t, tr.GetCarrier(context.Background()))
}

func TestRecordErrorOnSpan(t *testing.T) {
	tr, recorder := newRecordingTracer(t)

	_, span := tr.StartSpan(context.Background(), "handle")
	tr.RecordErrorOnSpan(span, errors.New("handler failed"))
	span.End()

	_, ok := tr.StartSpan(context.Background(), "ok")
	tr.RecordErrorOnSpan(ok, nil)
	ok.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "handler failed", spans[0].Status().Description)
	assert.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}

func TestSetAttributes(t *testing.T) {
	tr, recorder := newRecordingTracer(t)

	_, span := tr.StartSpan(context.Background(), "retry")
	tr.SetAttributes(span, map[string]interface{}{
		"queue":       "example4",
		"retry_count": int32(2),
		"final":       false,
		"delay":       1.5,
		"origin":      struct{ Key string }{"example4"},
	})
	span.End()

	attrs := recorder.Ended()[0].Attributes()
	assert.Contains(t, attrs, attribute.String("queue", "example4"))
	assert.Contains(t, attrs, attribute.Int("retry_count", 2))
	assert.Contains(t, attrs, attribute.Bool("final", false))
	assert.Contains(t, attrs, attribute.Float64("delay", 1.5))
	assert.Contains(t, attrs, attribute.String("origin", "{example4}"))
}

func TestNewClientWithoutExport(t *testing.T) {
	tr, err := NewClient(Config{ServiceName: "rabbitctl", AppEnv: "test"}, nil)
	require.NoError(t, err)
	assert.NoError(t, tr.Shutdown(context.Background()))
}
