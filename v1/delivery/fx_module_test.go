package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
)

func TestFXModuleRunsDeadLetterObserver(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockDeadLetterSink(ctrl)

	broker := newFakeBroker()
	env := envelope.New([]byte("lost"), "dlx").WithRetryCount(3)
	require.NoError(t, broker.Publish(context.Background(), rabbit.Route{RoutingKey: "dlx"}, env.Body(), env.Headers()))

	stored := make(chan DeadLetter, 1)
	sink.EXPECT().Store(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, dl DeadLetter) error {
		stored <- dl
		return nil
	})

	app := fxtest.New(t,
		fx.Provide(
			func() rabbit.Client { return broker },
			func() ObserverConfig { return ObserverConfig{} },
			func() DeadLetterSink { return sink },
			AsRunner(func(o *DeadLetterObserver) *DeadLetterObserver { return o }),
		),
		FXModule,
	)
	app.RequireStart()

	select {
	case dl := <-stored:
		assert.Equal(t, env.MessageID(), dl.MessageID)
		assert.Equal(t, 3, dl.RetryCount)
	case <-time.After(5 * time.Second):
		t.Fatal("dead letter was not stored")
	}

	app.RequireStop()
}

func TestNewConsumerWithDIAppliesInstrumentation(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := NewMockLogger(ctrl)
	dedup := NewMockDeduplicator(ctrl)

	env := envelope.New([]byte("x"), "dlx").WithRetryCount(3)
	key := "example4:" + env.MessageID()

	logger.EXPECT().WarnWithContext(gomock.Any(), "Handler failed", errHandler, gomock.Any())
	logger.EXPECT().WarnWithContext(gomock.Any(), "Message dead-lettered", nil, gomock.Any())
	dedup.EXPECT().Seen(gomock.Any(), key).Return(false, nil)

	c, err := NewConsumerWithDI(ConsumerParams{
		Instrumentation: Instrumentation{Logger: logger},
		Client:          newFakeBroker(),
		Config:          Config{Queue: "example4"},
		Handler:         func(context.Context, envelope.Envelope) error { return errHandler },
		Deduplicator:    dedup,
	})
	require.NoError(t, err)

	d := &fakeDelivery{body: env.Body(), headers: env.Headers(), route: rabbit.Route{RoutingKey: "example4"}}
	outcome, err := c.HandleDelivery(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeadLettered, outcome)
}

func TestNewDelayedPublisherWithDIUsesConfiguredPrefix(t *testing.T) {
	broker := newFakeBroker()
	p, err := NewDelayedPublisherWithDI(DelayedPublisherParams{
		Client: broker,
		Config: Config{DelayedQueuePrefix: "retry"},
	})
	require.NoError(t, err)

	require.NoError(t, p.PublishDelayed(context.Background(), []byte("x"), time.Second, "orders"))
	assert.Len(t, broker.messages("retry.orders.1000ms"), 1)
}
