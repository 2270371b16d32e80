package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var errSimulated = errors.New("simulated processing failure")

func newRetryCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Publish and consume messages with bounded retries and a dead-letter queue",
	}

	var queue, dlq string
	send := &cobra.Command{
		Use:   "send <payload>",
		Short: "Publish a message with retries=0 and a dead-letter target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var client rabbit.Client
			return rt.once(cmd, fx.Populate(&client), func(ctx context.Context) error {
				if _, err := client.DeclareQueue(ctx, queue, rabbit.QueueOptions{}); err != nil {
					return err
				}
				env := envelope.New([]byte(args[0]), dlq)
				if err := client.Publish(ctx, rabbit.Route{RoutingKey: queue}, env.Body(), env.Headers()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), " [x] Sent %q to %s (message id %s)\n", args[0], queue, env.MessageID())
				return nil
			})
		},
	}
	send.Flags().StringVar(&queue, "queue", "example4", "destination queue")
	send.Flags().StringVar(&dlq, "dlq", delivery.DefaultDeadLetterQueue, "dead-letter queue named in the message")

	var cfg delivery.Config
	var fail bool
	receive := &cobra.Command{
		Use:   "receive",
		Short: "Consume a queue, retrying failed messages and dead-lettering exhausted ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.serve(cmd, consumerModule(rt.settings, cfg, retryHandler(cmd.OutOrStdout(), fail)))
		},
	}
	f := receive.Flags()
	f.StringVar(&cfg.Queue, "queue", "example4", "queue to consume")
	f.IntVar(&cfg.MaxRetries, "max-retries", delivery.DefaultMaxRetries, "republishes before a message is dead-lettered")
	f.BoolVar(&cfg.UnconditionalRetry, "unconditional", false, "retry every message until max-retries, then acknowledge it")
	f.DurationVar(&cfg.RetryDelay, "delay", 0, "pause before a retry is republished")
	f.BoolVar(&cfg.BrokerDelayedRetry, "broker-delay", false, "park retries in a TTL staging queue instead of sleeping")
	f.StringVar(&cfg.DeadLetterQueue, "dlq", delivery.DefaultDeadLetterQueue, "dead-letter queue for messages that do not name one")
	f.StringVar(&cfg.BindExchange, "bind", "", "bind the queue to this exchange, e.g. amq.direct")
	f.BoolVar(&fail, "fail", false, "make the handler fail every message")

	cmd.AddCommand(send, receive)
	return cmd
}

func consumerModule(s Settings, cfg delivery.Config, handler delivery.Handler) fx.Option {
	return fx.Options(
		delivery.FXModule,
		dedupModule(s),
		fx.Supply(cfg),
		fx.Provide(
			func() delivery.Handler { return handler },
			delivery.AsRunner(func(c *delivery.Consumer) *delivery.Consumer { return c }),
		),
	)
}

func retryHandler(out io.Writer, fail bool) delivery.Handler {
	return func(_ context.Context, env envelope.Envelope) error {
		fmt.Fprintf(out, " [x] Received %s (retry %d)\n", env.Body(), env.RetryCount())
		if fail {
			return errSimulated
		}
		return nil
	}
}
