package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRequest("ingest", "ok", 0.01)
	m.RecordRequest("ingest", "ok", 0.02)
	m.RecordRequest("fetch", "not_found", 0.01)
	m.RecordUpload(10)
	m.RecordDownload(7)
	m.RecordPurge("expired")
	m.SetObjects(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("ingest", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("fetch", "not_found")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.BytesUploaded))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.BytesDownloaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ObjectsPurged.WithLabelValues("expired")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Objects))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRequest("ingest", "ok", 0.01)
		m.RecordUpload(1)
		m.RecordDownload(1)
		m.RecordPurge("consumed")
		m.SetObjects(1)
	})
}
