package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds the Prometheus metrics of one RowStore.
type Metrics struct {
	opsTotal     *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
	rowsWritten  prometheus.Counter
	bytesWritten prometheus.Counter
}

// NewMetrics creates and registers the store metrics with reg. Pass
// prometheus.DefaultRegisterer outside tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		opsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yggdb_store_operations_total",
				Help: "Total number of row store operations",
			},
			[]string{"operation", "status"},
		),
		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yggdb_store_operation_duration_seconds",
				Help:    "Row store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		rowsWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "yggdb_store_rows_written_total",
				Help: "Total number of rows written",
			},
		),
		bytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "yggdb_store_bytes_written_total",
				Help: "Total encoded row bytes written",
			},
		),
	}
}

// recordOp is safe on a nil receiver so an uninstrumented store pays only
// a nil check.
func (m *Metrics) recordOp(operation string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.opsTotal.WithLabelValues(operation, status).Inc()
	m.opDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) recordWrite(bytes int) {
	if m == nil {
		return
	}
	m.rowsWritten.Inc()
	m.bytesWritten.Add(float64(bytes))
}
