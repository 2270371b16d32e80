package metrics

import (
	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// ObserveOperation records one operation reported by the rabbit or delivery
// package. It implements observability.Observer.
func (m *Metrics) ObserveOperation(op observability.OperationContext) {
	status := "success"
	if op.Error != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(op.Component, op.Operation, op.Resource, status).Inc()
	if op.Duration > 0 {
		m.operationDuration.WithLabelValues(op.Component, op.Operation).Observe(op.Duration.Seconds())
	}
	if op.Size > 0 && op.Error == nil {
		m.payloadBytes.WithLabelValues(op.Component, op.Operation, op.Resource).Add(float64(op.Size))
	}
}

// CreateCounter creates a new CounterVec metric and registers it.
func (m *Metrics) CreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := m.createCounterVec(name, help, labels)
	m.registerer.MustRegister(counter)
	return counter
}

// CreateHistogram creates a new HistogramVec metric and registers it.
func (m *Metrics) CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hist := m.createHistogramVec(name, help, labels, buckets)
	m.registerer.MustRegister(hist)
	return hist
}

// CreateGauge creates a new GaugeVec metric and registers it.
func (m *Metrics) CreateGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := m.createGaugeVec(name, help, labels)
	m.registerer.MustRegister(gauge)
	return gauge
}

func (m *Metrics) createCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func (m *Metrics) createHistogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

func (m *Metrics) createGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}
