package rabbit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingObserver collects every observed operation.
type recordingObserver struct {
	mu         sync.Mutex
	operations []observability.OperationContext
}

func (r *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, ctx)
}

func (r *recordingObserver) Operations() []observability.OperationContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]observability.OperationContext{}, r.operations...)
}

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
	warns []string
	errs  []string
}

func (l *recordingLogger) InfoWithContext(_ context.Context, msg string, _ error, _ ...map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) WarnWithContext(_ context.Context, msg string, _ error, _ ...map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) ErrorWithContext(_ context.Context, msg string, _ error, _ ...map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

func TestObserveOperation(t *testing.T) {
	observer := &recordingObserver{}
	client := &RabbitClient{observer: observer}

	publishErr := errors.New("boom")
	client.observeOperation("produce", "", "orders", 100*time.Millisecond, publishErr, 1024)

	ops := observer.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, "rabbit", ops[0].Component)
	assert.Equal(t, "produce", ops[0].Operation)
	assert.Equal(t, "", ops[0].Resource)
	assert.Equal(t, "orders", ops[0].SubResource)
	assert.Equal(t, 100*time.Millisecond, ops[0].Duration)
	assert.Equal(t, int64(1024), ops[0].Size)
	assert.ErrorIs(t, ops[0].Error, publishErr)
}

func TestObserveOperationWithoutObserver(t *testing.T) {
	client := &RabbitClient{}
	assert.NotPanics(t, func() {
		client.observeOperation("consume", "example2_queue", "", 0, nil, 12)
	})
}

func TestBuilderChaining(t *testing.T) {
	observer := &recordingObserver{}
	logger := &recordingLogger{}

	client := &RabbitClient{}
	result := client.WithObserver(observer).WithLogger(logger)

	assert.Same(t, client, result)
	assert.Equal(t, observer, client.observer)
	assert.Equal(t, logger, client.logger)

	client.logInfo(context.Background(), "hello", nil)
	client.logWarn(context.Background(), "careful", nil)
	client.logError(context.Background(), "broken", map[string]interface{}{"queue": "q"})

	assert.Equal(t, []string{"hello"}, logger.infos)
	assert.Equal(t, []string{"careful"}, logger.warns)
	assert.Equal(t, []string{"broken"}, logger.errs)
}

func TestGracefulShutdownWithoutConnection(t *testing.T) {
	client := &RabbitClient{shutdownSignal: make(chan struct{})}

	assert.NotPanics(t, func() {
		client.GracefulShutdown()
		client.GracefulShutdown()
	})

	select {
	case <-client.shutdownSignal:
	default:
		t.Fatal("shutdown signal was not closed")
	}
}

func TestChannelClosedWithoutConnection(t *testing.T) {
	client := &RabbitClient{}
	_, err := client.channel()
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func BenchmarkObserverOverhead(b *testing.B) {
	client := &RabbitClient{observer: &recordingObserver{}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client.observeOperation("produce", "", "orders", time.Millisecond, nil, 100)
	}
}
