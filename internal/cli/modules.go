package cli

import (
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/archive"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/logger"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/metrics"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/redis"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/tracer"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// baseModules wires logging, tracing, optional metrics and the broker client.
func baseModules(s Settings) fx.Option {
	opts := []fx.Option{
		fx.Supply(
			logger.Config{Level: s.LogLevel, EnableTracing: true, ServiceName: s.ServiceName},
			tracer.Config{ServiceName: s.ServiceName, EnableExport: s.TracingExport},
			rabbit.Config{Connection: rabbit.Connection{URI: s.AMQPURI}},
		),
		logger.FXModule,
		tracer.FXModule,
		rabbit.FXModule,
		fx.Provide(
			func(l *logger.LoggerClient) rabbit.Logger { return l },
			func(l *logger.LoggerClient) delivery.Logger { return l },
			func(l *logger.LoggerClient) tracer.Logger { return l },
			func(t *tracer.Tracer) delivery.Tracer { return t },
		),
		fx.WithLogger(func(l *logger.LoggerClient) fxevent.Logger {
			if l == nil {
				return fxevent.NopLogger
			}
			return &fxevent.ZapLogger{Logger: l.Zap.WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
	}

	if s.MetricsAddress != "" {
		opts = append(opts,
			fx.Supply(metrics.Config{Address: s.MetricsAddress, ServiceName: s.ServiceName, Namespace: "rabbit_dlq"}),
			metrics.FXModule,
		)
	}

	return fx.Options(opts...)
}

// dedupModule enables the duplicate guard when Redis is configured.
func dedupModule(s Settings) fx.Option {
	if s.RedisAddress == "" {
		return fx.Options()
	}
	return fx.Options(
		fx.Supply(redis.Config{Address: s.RedisAddress, Password: s.RedisPassword}),
		redis.FXModule,
		fx.Provide(
			func(l *logger.LoggerClient) redis.Logger { return l },
			func(c *redis.RedisClient) delivery.Deduplicator { return c },
		),
	)
}

// archiveModule stores drained dead letters in SQL.
func archiveModule(s Settings) fx.Option {
	return fx.Options(
		fx.Supply(archive.Config{Driver: s.ArchiveDriver, DSN: s.ArchiveDSN}),
		archive.FXModule,
		fx.Provide(func(l *logger.LoggerClient) archive.Logger { return l }),
	)
}

const stopTimeout = 30 * time.Second
