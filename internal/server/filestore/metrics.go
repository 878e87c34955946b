package filestore

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of local bucket operations.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec   // filestore_operations_total{bucket,op,status}
	OperationDuration *prometheus.HistogramVec // filestore_operation_duration_seconds{bucket,op}
	IngestedBytes     *prometheus.CounterVec   // filestore_ingested_bytes_total{bucket}
}

// NewMetrics registers the collectors with registry, or with the default
// registerer when registry is nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Metrics{
		OperationsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "filestore_operations_total",
			Help: "Bucket operations by outcome",
		}, []string{"bucket", "op", "status"}),

		OperationDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "filestore_operation_duration_seconds",
			Help:    "Bucket operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"bucket", "op"}),

		IngestedBytes: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "filestore_ingested_bytes_total",
			Help: "Bytes written into buckets by uploads",
		}, []string{"bucket"}),
	}
}

// status collapses err into a low-cardinality label.
func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrorPermissionDenied):
		return "denied"
	case errors.Is(err, common.ErrorAlreadyExists):
		return "exists"
	default:
		return "error"
	}
}

// observe records one operation. A nil receiver does nothing.
func (m *Metrics) observe(bucket, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(bucket, op, status(err)).Inc()
	m.OperationDuration.WithLabelValues(bucket, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ingested(bucket string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestedBytes.WithLabelValues(bucket).Add(float64(n))
}
