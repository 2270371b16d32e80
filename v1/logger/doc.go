// Package logger provides structured logging for the module's services and CLI.
//
// It wraps Uber's zap with a small, error-first API and integrates with the fx
// dependency injection framework.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - Logger interface: Defines the contract for logging operations
//   - LoggerClient struct: Concrete implementation of the Logger interface
//   - NewLoggerClient constructor: Returns *LoggerClient (concrete type)
//   - FX module: Provides both *LoggerClient and Logger interface for dependency injection
//
// The rabbit and delivery packages declare only the context-aware methods they
// use, so a *LoggerClient can be passed to them directly.
//
// # Direct Usage (Without FX)
//
//	import "github.com/Aleph-Alpha/rabbit-dlq/v1/logger"
//
//	log := logger.NewLoggerClient(logger.Config{
//		Level:         "info",
//		EnableTracing: true,
//		ServiceName:   "rabbitctl",
//	})
//
//	log.Info("Consumer started", nil, map[string]interface{}{
//		"queue": "example4",
//	})
//
//	// Includes trace_id and span_id when ctx carries a span
//	log.WarnWithContext(ctx, "Handler failed", err, map[string]interface{}{
//		"retry_count": 2,
//	})
//
// # FX Module Integration
//
//	app := fx.New(
//		logger.FXModule,
//		fx.Provide(func() logger.Config {
//			return logger.Config{Level: "info", ServiceName: "rabbitctl"}
//		}),
//		fx.Provide(func(l *logger.LoggerClient) rabbit.Logger { return l }),
//	)
//
// # Configuration
//
//	ZAP_LOGGER_LEVEL=debug          # Log level (debug, info, warning, error)
//	LOGGER_ENABLE_TRACING=true      # Enable distributed tracing integration
//	LOGGER_SERVICE_NAME=rabbitctl   # Value of the "service" field
//
// # Tracing Integration
//
// When tracing is enabled, the ...WithContext methods extract the OpenTelemetry
// span context from ctx and add two fields:
//   - trace_id: The OpenTelemetry trace ID
//   - span_id: The OpenTelemetry span ID
//
// # Thread Safety
//
// All methods on the Logger interface are safe for concurrent use by multiple
// goroutines.
package logger
