package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the speech capture client
type Metrics struct {
	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsSucceeded prometheus.Counter
	SessionsFailed    *prometheus.CounterVec // labelled by error kind
	SessionDuration   prometheus.Histogram
	ActiveSession     prometheus.Gauge

	// Stage metrics
	CaptureBytes    prometheus.Histogram
	ConvertDuration prometheus.Histogram
	UploadDuration  prometheus.Histogram
	UploadPayload   prometheus.Histogram

	// HTTP status API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "speechcap_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "speechcap_sessions_succeeded_total",
			Help: "Total number of sessions that produced a transcript",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "speechcap_sessions_failed_total",
			Help: "Total number of failed sessions by error kind",
		}, []string{"kind"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechcap_session_duration_seconds",
			Help:    "Wall time from start gesture to final outcome",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}),
		ActiveSession: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "speechcap_active_session",
			Help: "1 while a session is in flight, 0 when idle",
		}),

		CaptureBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechcap_capture_bytes",
			Help:    "Size of captured raw audio per session in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		ConvertDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechcap_convert_duration_seconds",
			Help:    "Time spent converting captures to canonical WAV",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		}),
		UploadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechcap_upload_duration_seconds",
			Help:    "Time spent uploading payloads to the speech endpoint",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		UploadPayload: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechcap_upload_payload_bytes",
			Help:    "Size of uploaded canonical payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "speechcap_http_requests_total",
			Help: "Total HTTP requests to the status API",
		}, []string{"endpoint", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speechcap_http_request_duration_seconds",
			Help:    "HTTP status API request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}
