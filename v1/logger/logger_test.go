package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level, tracing bool) (*LoggerClient, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewFromZap(zap.New(core), tracing), logs
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{Debug, zap.DebugLevel},
		{Info, zap.InfoLevel},
		{Warning, zap.WarnLevel},
		{Error, zap.ErrorLevel},
		{"", zap.InfoLevel},
		{"verbose", zap.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.level))
		})
	}
}

func TestLoggerFields(t *testing.T) {
	log, logs := newObservedLogger(zap.DebugLevel, false)

	log.Warn("Handler failed", errors.New("boom"), map[string]interface{}{
		"queue":       "example4",
		"retry_count": 2,
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "Handler failed", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "example4", fields["queue"])
	assert.EqualValues(t, 2, fields["retry_count"])
}

func TestLoggerWithContextAddsTraceIDs(t *testing.T) {
	log, logs := newObservedLogger(zap.InfoLevel, true)

	log.InfoWithContext(spanContext(t), "Retrying message", nil, map[string]interface{}{"queue": "q"})
	log.InfoWithContext(context.Background(), "No span", nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, "q", fields["queue"])

	assert.NotContains(t, entries[1].ContextMap(), "trace_id")
}

func TestLoggerWithContextTracingDisabled(t *testing.T) {
	log, logs := newObservedLogger(zap.InfoLevel, false)

	log.ErrorWithContext(spanContext(t), "Consumer stopped", errors.New("channel closed"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap(), "trace_id")
	assert.Equal(t, "channel closed", entries[0].ContextMap()["error"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	log, logs := newObservedLogger(zap.WarnLevel, false)

	log.Debug("debug", nil)
	log.Info("info", nil)
	log.DebugWithContext(context.Background(), "debug", nil)
	log.Warn("warn", nil)
	log.WarnWithContext(context.Background(), "warn", nil)

	assert.Equal(t, 2, logs.Len())
}

func TestNewLoggerClient(t *testing.T) {
	log := NewLoggerClient(Config{Level: Debug, ServiceName: "rabbitctl"})
	require.NotNil(t, log.Zap)
	assert.True(t, log.Zap.Core().Enabled(zap.DebugLevel))

	var _ Logger = log
}
