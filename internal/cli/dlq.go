package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/archive"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// ErrMissingArchiveDSN is returned by archive-backed commands without ARCHIVE_DSN.
var ErrMissingArchiveDSN = errors.New("ARCHIVE_DSN is not set")

func newDLQCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect dead-lettered messages",
	}

	var cfg delivery.ObserverConfig
	var store bool
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Drain a dead-letter queue, logging every message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []fx.Option{
				delivery.FXModule,
				fx.Supply(cfg),
				fx.Provide(delivery.AsRunner(func(o *delivery.DeadLetterObserver) *delivery.DeadLetterObserver { return o })),
			}
			if store {
				if rt.settings.ArchiveDSN == "" {
					return ErrMissingArchiveDSN
				}
				opts = append(opts, archiveModule(rt.settings))
			}
			return rt.serve(cmd, fx.Options(opts...))
		},
	}
	watch.Flags().StringVar(&cfg.Queue, "queue", delivery.DefaultDeadLetterQueue, "dead-letter queue to drain")
	watch.Flags().BoolVar(&store, "archive", false, "store every message in the ARCHIVE_DSN database")

	var queue string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the most recently archived dead letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.settings.ArchiveDSN == "" {
				return ErrMissingArchiveDSN
			}
			a, err := archive.NewArchive(archive.Config{Driver: rt.settings.ArchiveDriver, DSN: rt.settings.ArchiveDSN})
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Recent(cmd.Context(), queue, limit)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}
	list.Flags().StringVar(&queue, "queue", "", "only list this dead-letter queue")
	list.Flags().IntVar(&limit, "limit", archive.DefaultRecentLimit, "maximum number of records")

	cmd.AddCommand(watch, list)
	return cmd
}

func printRecords(out io.Writer, records []archive.Record) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECEIVED\tQUEUE\tMESSAGE ID\tORIGIN\tRETRIES\tREASON\tBODY")
	for _, r := range records {
		origin := r.DeadLetter().Origin.String()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ReceivedAt.Format(time.RFC3339), r.Queue, r.MessageID, origin, r.RetryCount, r.Reason, truncate(string(r.Body), 40))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

