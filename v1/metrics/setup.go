package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates the Prometheus registry and HTTP server responsible
// for exposing application metrics.
type Metrics struct {
	// Server defines the HTTP server used to expose the /metrics endpoint.
	Server *http.Server

	// Registry is the Prometheus registry where all metrics are registered.
	// Each service maintains its own isolated registry to prevent metric name collisions.
	Registry *prometheus.Registry

	registerer prometheus.Registerer
	namespace  string

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	payloadBytes      *prometheus.CounterVec
}

// NewMetrics initializes and returns a new instance of the Metrics struct.
// It sets up a dedicated Prometheus registry, registers default system collectors,
// wraps all metrics with a constant `service` label, and creates an HTTP server
// exposing the /metrics endpoint.
//
// The built-in metrics record every operation reported through ObserveOperation:
//
//	operations_total{component,operation,resource,status}
//	operation_duration_seconds{component,operation}
//	payload_bytes_total{component,operation,resource}
//
// Example:
//
//	m := metrics.NewMetrics(metrics.Config{Address: ":9090", ServiceName: "rabbitctl"})
//	client.WithObserver(m)
//	go m.Server.ListenAndServe()
func NewMetrics(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()

	// every metric gets service="<cfg.ServiceName>"
	wrappedRegistry := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": cfg.ServiceName},
		registry,
	)

	m := &Metrics{
		Registry:   registry,
		registerer: wrappedRegistry,
		namespace:  cfg.Namespace,
	}

	m.operationsTotal = m.createCounterVec("operations_total",
		"Total number of broker and delivery operations",
		[]string{"component", "operation", "resource", "status"})
	m.operationDuration = m.createHistogramVec("operation_duration_seconds",
		"Duration of broker and delivery operations in seconds",
		[]string{"component", "operation"}, prometheus.DefBuckets)
	m.payloadBytes = m.createCounterVec("payload_bytes_total",
		"Total message payload bytes handled",
		[]string{"component", "operation", "resource"})

	wrappedRegistry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.payloadBytes,
	)

	if cfg.EnableDefaultCollectors {
		wrappedRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.Server = &http.Server{
		Addr:    cfg.address(),
		Handler: mux,
	}
	return m
}
