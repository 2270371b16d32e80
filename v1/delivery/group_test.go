package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"github.com/stretchr/testify/assert"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestRunAllReturnsFirstErrorAndCancelsOthers(t *testing.T) {
	boom := errors.New("boom")
	stopped := make(chan struct{})

	err := RunAll(context.Background(),
		runnerFunc(func(context.Context) error { return boom }),
		runnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		}),
	)

	assert.ErrorIs(t, err, boom)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sibling runner was not cancelled")
	}
}

func TestRunAllStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- RunAll(ctx,
			runnerFunc(func(ctx context.Context) error { <-ctx.Done(); return nil }),
			runnerFunc(func(ctx context.Context) error { <-ctx.Done(); return nil }),
		)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunAll did not return after cancellation")
	}
}

func TestRunAllWithoutRunners(t *testing.T) {
	assert.NoError(t, RunAll(context.Background()))
}

func TestConsumerRejectsConcurrentRun(t *testing.T) {
	c, err := NewConsumer(newFakeBroker(), Config{Queue: "q"},
		func(context.Context, envelope.Envelope) error { return nil })
	assert.NoError(t, err)

	c.running.Store(true)
	assert.ErrorIs(t, c.Run(context.Background()), ErrAlreadyRunning)
}
