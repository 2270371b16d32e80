package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newDelayedCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delayed",
		Short: "Deliver messages after a delay using broker-side TTL staging queues",
	}

	var queue, prefix string
	send := &cobra.Command{
		Use:   "send <payload> <ttl-ms>",
		Short: "Publish a message that reaches the queue after ttl-ms milliseconds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delay, err := parseDelay(args[1])
			if err != nil {
				return err
			}

			var pub *delivery.DelayedPublisher
			opts := fx.Options(
				delivery.FXModule,
				fx.Supply(delivery.Config{DelayedQueuePrefix: prefix}),
				fx.Populate(&pub),
			)
			return rt.once(cmd, opts, func(ctx context.Context) error {
				if err := pub.PublishDelayed(ctx, []byte(args[0]), delay, queue); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), " [x] Sent %q to %s via %s\n",
					args[0], queue, delivery.StagingQueueName(prefix, queue, delay))
				return nil
			})
		},
	}
	send.Flags().StringVar(&queue, "queue", "deadqueue", "queue the message is delivered to")
	send.Flags().StringVar(&prefix, "prefix", delivery.DefaultDelayedQueuePrefix, "staging queue name prefix")

	cmd.AddCommand(send)
	return cmd
}

func parseDelay(ms string) (time.Duration, error) {
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("ttl-ms must be a positive number of milliseconds, got %q", ms)
	}
	return time.Duration(n) * time.Millisecond, nil
}
