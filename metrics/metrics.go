// Package metrics provides Prometheus metrics for the adapter and the emulator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Adapter metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	CacheLookups      *prometheus.CounterVec
	Connected         prometheus.Gauge

	// Emulator metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. Passing a fresh
// registry per instance keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsource_operations_total",
				Help: "Total number of adapter operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsource_operation_duration_seconds",
				Help:    "Duration of adapter operations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsource_cache_lookups_total",
				Help: "Metadata cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		Connected: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsource_connected",
				Help: "1 when the datasource is connected",
			},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "couchsim_requests_total",
				Help: "Total number of emulator HTTP requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "couchsim_request_duration_seconds",
				Help:    "Duration of emulator HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// RecordOperation records one adapter operation.
func (m *Metrics) RecordOperation(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordCache records a metadata cache hit or miss.
func (m *Metrics) RecordCache(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

// SetConnected mirrors the connection state.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// RecordRequest records one emulator request.
func (m *Metrics) RecordRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}
