// Package metrics provides Prometheus-based monitoring for the broker client
// and the delivery components.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - MetricsCollector interface: Defines the contract for metrics operations
//   - Metrics struct: Concrete implementation of the MetricsCollector interface
//   - NewMetrics constructor: Returns *Metrics (concrete type)
//   - FX module: Provides *Metrics, MetricsCollector and observability.Observer
//
// *Metrics implements observability.Observer. Every operation the rabbit and
// delivery packages report (publish, consume, ack, retry, dead_letter, ...)
// becomes a sample of:
//
//	operations_total{service,component,operation,resource,status}
//	operation_duration_seconds{service,component,operation}
//	payload_bytes_total{service,component,operation,resource}
//
// # Direct Usage (Without FX)
//
//	m := metrics.NewMetrics(metrics.Config{
//		Address:                 ":9090",
//		EnableDefaultCollectors: true,
//		ServiceName:             "rabbitctl",
//	})
//	client.WithObserver(m)
//	consumer.WithObserver(m)
//	go m.Server.ListenAndServe()
//
// Access metrics at: http://localhost:9090/metrics
//
// # Configuration
//
//	METRICS_ADDRESS=:9090                      # Port and address for /metrics endpoint
//	METRICS_ENABLE_DEFAULT_COLLECTORS=true     # Enable runtime and process metrics
//	METRICS_NAMESPACE=rabbit_dlq               # Optional prefix for all metric names
//	METRICS_SERVICE_NAME=rabbitctl             # Adds service label to all metrics
//
// # Custom Metrics
//
// CreateCounter, CreateHistogram and CreateGauge register additional metrics
// on the same registry, with the service label and namespace applied.
//
// # Thread Safety
//
// All methods on the Metrics struct and Prometheus collectors are safe for
// concurrent use by multiple goroutines.
package metrics
