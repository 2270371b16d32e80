package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newSendCommand(rt *runtime) *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "send <payload>",
		Short: "Publish one message to a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var client rabbit.Client
			return rt.once(cmd, fx.Populate(&client), func(ctx context.Context) error {
				if _, err := client.DeclareQueue(ctx, queue, rabbit.QueueOptions{}); err != nil {
					return err
				}
				if err := client.Publish(ctx, rabbit.Route{RoutingKey: queue}, []byte(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), " [x] Sent %q to %s\n", args[0], queue)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&queue, "queue", "example1", "destination queue")
	return cmd
}

func newReceiveCommand(rt *runtime) *cobra.Command {
	var cfg delivery.SubscriberConfig
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Consume a queue and print every message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.serve(cmd, subscriberModule(rt.settings, cfg, cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringVar(&cfg.Queue, "queue", "example1", "queue to consume")
	cmd.Flags().BoolVar(&cfg.Durable, "durable", false, "declare the queue as durable")
	return cmd
}

func newFanoutCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fanout",
		Short: "Publish to and consume from a fanout exchange",
	}

	var exchange string
	send := &cobra.Command{
		Use:   "send <payload>",
		Short: "Publish one message to every queue bound to the exchange",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var client rabbit.Client
			return rt.once(cmd, fx.Populate(&client), func(ctx context.Context) error {
				if err := client.DeclareExchange(ctx, exchange, rabbit.Fanout, true); err != nil {
					return err
				}
				if err := client.Publish(ctx, rabbit.Route{Exchange: exchange}, []byte(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), " [x] Sent %q to exchange %s\n", args[0], exchange)
				return nil
			})
		},
	}
	send.Flags().StringVar(&exchange, "exchange", "example2_exchange", "fanout exchange")

	cfg := delivery.SubscriberConfig{ExchangeKind: string(rabbit.Fanout)}
	receive := &cobra.Command{
		Use:   "receive",
		Short: "Bind a queue to the exchange and print every message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.serve(cmd, subscriberModule(rt.settings, cfg, cmd.OutOrStdout()))
		},
	}
	receive.Flags().StringVar(&cfg.Exchange, "exchange", "example2_exchange", "fanout exchange")
	receive.Flags().StringVar(&cfg.Queue, "queue", "example2_queue", "queue bound to the exchange")

	cmd.AddCommand(send, receive)
	return cmd
}

func subscriberModule(s Settings, cfg delivery.SubscriberConfig, out io.Writer) fx.Option {
	return fx.Options(
		delivery.FXModule,
		dedupModule(s),
		fx.Provide(
			delivery.AsRunner(func(client rabbit.Client, inst delivery.Instrumentation, dedup optionalDeduplicator) (*delivery.Subscriber, error) {
				sub, err := delivery.NewSubscriber(client, cfg, printHandler(out))
				if err != nil {
					return nil, err
				}
				return sub.WithLogger(inst.Logger).WithTracer(inst.Tracer).WithObserver(inst.Observer).WithDeduplicator(dedup.Deduplicator), nil
			}),
		),
	)
}

type optionalDeduplicator struct {
	fx.In

	Deduplicator delivery.Deduplicator `optional:"true"`
}

func printHandler(out io.Writer) delivery.Handler {
	return func(_ context.Context, env envelope.Envelope) error {
		fmt.Fprintf(out, " [x] Received %s\n", env.Body())
		return nil
	}
}
