package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace for use with metric names.
const namespace = "oneshot"

// Metrics holds all Prometheus metrics of the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec   // oneshot_requests_total{operation,outcome}
	RequestDuration *prometheus.HistogramVec // oneshot_request_duration_seconds{operation}

	BytesUploaded   prometheus.Counter // oneshot_bytes_uploaded_total
	BytesDownloaded prometheus.Counter // oneshot_bytes_downloaded_total

	ObjectsPurged *prometheus.CounterVec // oneshot_objects_purged_total{reason}
	Objects       prometheus.Gauge       // oneshot_objects
}

// New registers all the metrics in the given registry, the default one when nil.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total transfer requests by operation and outcome.",
		}, []string{"operation", "outcome"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Transfer request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_uploaded_total",
			Help:      "Total bytes accepted by uploads.",
		}),

		BytesDownloaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_downloaded_total",
			Help:      "Total bytes served by downloads.",
		}),

		ObjectsPurged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_purged_total",
			Help:      "Total objects removed, by reason (consumed or expired).",
		}, []string{"reason"}),

		Objects: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects",
			Help:      "Number of objects awaiting download.",
		}),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordUpload records bytes uploaded.
func (m *Metrics) RecordUpload(bytes int64) {
	if m == nil {
		return
	}
	m.BytesUploaded.Add(float64(bytes))
}

// RecordDownload records bytes downloaded.
func (m *Metrics) RecordDownload(bytes int64) {
	if m == nil {
		return
	}
	m.BytesDownloaded.Add(float64(bytes))
}

// RecordPurge records a removed object.
func (m *Metrics) RecordPurge(reason string) {
	if m == nil {
		return
	}
	m.ObjectsPurged.WithLabelValues(reason).Inc()
}

// SetObjects updates the number of live objects.
func (m *Metrics) SetObjects(n int) {
	if m == nil {
		return
	}
	m.Objects.Set(float64(n))
}
