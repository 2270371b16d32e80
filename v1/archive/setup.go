package archive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Archive stores dead letters in a SQL table. It satisfies
// delivery.DeadLetterSink.
//
// The active *gorm.DB is held in an atomic pointer and swapped when the
// connection monitor reconnects.
type Archive struct {
	cfg    Config
	client atomic.Pointer[gorm.DB]

	logger   Logger
	observer observability.Observer

	shutdownSignal    chan struct{}
	closeShutdownOnce sync.Once
}

// NewArchive connects to the configured database and creates or updates the
// dead_letters table.
func NewArchive(cfg Config) (*Archive, error) {
	db, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("error in connecting to archive database: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate dead_letters table: %w", err)
	}

	return newWithDB(cfg, db), nil
}

func newWithDB(cfg Config, db *gorm.DB) *Archive {
	a := &Archive{
		cfg:            cfg,
		shutdownSignal: make(chan struct{}),
	}
	a.client.Store(db)
	return a
}

func dialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}
	switch cfg.driver() {
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

func connect(cfg Config) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	database, err := gorm.Open(d, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.driver(), err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s database instance: %w", cfg.driver(), err)
	}

	maxOpen := cfg.ConnectionDetails.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.ConnectionDetails.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	maxLifetime := cfg.ConnectionDetails.ConnMaxLifetime
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	return database, nil
}

// DB returns the active gorm handle.
func (a *Archive) DB() *gorm.DB {
	return a.client.Load()
}

// WithLogger attaches a logger and returns the archive for chaining.
func (a *Archive) WithLogger(logger Logger) *Archive {
	a.logger = logger
	return a
}

// WithObserver attaches an operation observer and returns the archive for chaining.
func (a *Archive) WithObserver(observer observability.Observer) *Archive {
	a.observer = observer
	return a
}

// MonitorConnection pings the database every HealthCheckInterval and
// reconnects when the ping fails. It returns when ctx is cancelled or Close
// is called.
func (a *Archive) MonitorConnection(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.healthCheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-a.shutdownSignal:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := a.healthCheck(ctx)
			if err == nil {
				continue
			}
			a.logWarn("Archive database health check failed", err)

			conn, err := connect(a.cfg)
			if err != nil {
				a.logError("Archive database reconnection failed", err)
				continue
			}
			old := a.client.Swap(conn)
			if old != nil {
				if sqlDB, err := old.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}
			a.logInfo("Reconnected to archive database")
		}
	}
}

func (a *Archive) healthCheck(ctx context.Context) error {
	db := a.DB()
	if db == nil {
		return ErrNotConnected
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance during health check: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed during health check: %w", err)
	}
	return nil
}

// Close stops the connection monitor and closes the pool.
func (a *Archive) Close() error {
	a.closeShutdownOnce.Do(func() {
		close(a.shutdownSignal)
	})

	db := a.client.Swap(nil)
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (a *Archive) logInfo(msg string) {
	if a.logger != nil {
		a.logger.Info(msg, nil, nil)
	}
}

func (a *Archive) logWarn(msg string, err error) {
	if a.logger != nil {
		a.logger.Warn(msg, err, nil)
	}
}

func (a *Archive) logError(msg string, err error) {
	if a.logger != nil {
		a.logger.Error(msg, err, nil)
	}
}
