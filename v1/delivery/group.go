package delivery

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Runner is a long-running component such as a Consumer, a Subscriber or a
// DeadLetterObserver.
type Runner interface {
	Run(ctx context.Context) error
}

// RunAll runs every runner concurrently and waits for all of them. The first
// runner to fail cancels the others, and its error is returned.
//
// Runners share nothing but the context; each should own its broker client so
// one runner's channel failure does not take down the others.
func RunAll(ctx context.Context, runners ...Runner) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}
	return g.Wait()
}
