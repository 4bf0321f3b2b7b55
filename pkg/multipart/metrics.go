package multipart

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric labels, one per engine operation, used with metrics.requestDuration.
const (
	metricPrepare     = "prepare"
	metricListUploads = "list_multipart_uploads"
	metricGetUpload   = "get_multipart_upload"
	metricPutPart     = "put_part"
	metricCopyPart    = "copy_part"
	metricListParts   = "list_parts"
	metricAbort       = "abort"
	metricComplete    = "complete"
)

// metrics groups the Prometheus collectors an Engine reports on its
// operations and its copy/assembly concurrency limiter.
type metrics struct {
	requestDuration     *prometheus.SummaryVec
	copySemaphoreDemand prometheus.Gauge
	copySemaphoreLimit  prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		requestDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "s3mockd_multipart_request_duration_ms",
			Help:       "Duration of multipart engine operations in milliseconds, per operation",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"operation"}),
		copySemaphoreDemand: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "s3mockd_multipart_copy_semaphore_demand",
			Help: "Number of goroutines wanting to acquire the copy/assembly semaphore or holding it",
		}),
		copySemaphoreLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "s3mockd_multipart_copy_semaphore_limit",
			Help: "Configured limit of concurrent copy/assembly operations",
		}),
	}
}

// Register adds the Engine's collectors to registry.
func (m *metrics) Register(registry prometheus.Registerer) {
	registry.MustRegister(m.requestDuration)
	registry.MustRegister(m.copySemaphoreDemand)
	registry.MustRegister(m.copySemaphoreLimit)
}

func (m *metrics) observe(start time.Time, operation string) {
	elapsed := time.Since(start)
	ms := float64(elapsed.Nanoseconds() / int64(time.Millisecond))
	m.requestDuration.WithLabelValues(operation).Observe(ms)
}
