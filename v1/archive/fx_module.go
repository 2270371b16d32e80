package archive

import (
	"context"
	"sync"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"go.uber.org/fx"
)

// FXModule provides *Archive and exposes it as a delivery.DeadLetterSink.
// The connection monitor runs for the lifetime of the application and the
// pool is closed on stop.
var FXModule = fx.Module("archive",
	fx.Provide(
		NewArchiveWithDI,
		fx.Annotate(
			func(a *Archive) *Archive { return a },
			fx.As(new(delivery.DeadLetterSink)),
		),
	),
	fx.Invoke(RegisterArchiveLifecycle),
)

// ArchiveParams groups the dependencies needed to create an Archive.
type ArchiveParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewArchiveWithDI creates an Archive using dependency injection.
func NewArchiveWithDI(params ArchiveParams) (*Archive, error) {
	a, err := NewArchive(params.Config)
	if err != nil {
		return nil, err
	}
	if params.Logger != nil {
		a.WithLogger(params.Logger)
	}
	if params.Observer != nil {
		a.WithObserver(params.Observer)
	}
	return a, nil
}

// ArchiveLifecycleParams groups the dependencies for archive lifecycle management.
type ArchiveLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Archive   *Archive
}

// RegisterArchiveLifecycle starts the connection monitor and closes the pool on stop.
func RegisterArchiveLifecycle(params ArchiveLifecycleParams) {
	wg := &sync.WaitGroup{}
	ctx, cancel := context.WithCancel(context.Background())

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				params.Archive.MonitorConnection(ctx)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			wg.Wait()
			return params.Archive.Close()
		},
	})
}
