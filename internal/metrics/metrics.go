package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "publisher_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Publish Metrics
	PublishAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_publish_attempts_total",
			Help: "Total number of platform publish attempts",
		},
		[]string{"platform", "outcome"},
	)

	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "publisher_publish_duration_seconds",
			Help:    "Duration of one platform publish attempt",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
		[]string{"platform"},
	)

	PublishUploadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "publisher_publish_upload_bytes",
			Help:    "Size of uploaded media in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 13), // 1MB to 4GB
		},
		[]string{"platform"},
	)

	VideosCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "publisher_videos_cleaned_total",
			Help: "Total number of videos deleted after full cross-platform success",
		},
	)

	// Dispatch Metrics
	DispatchTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_dispatch_ticks_total",
			Help: "Total number of dispatch ticks",
		},
		[]string{"outcome"}, // completed, skipped_overlap
	)

	DispatchDueVideos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "publisher_dispatch_due_videos",
			Help: "Number of due videos seen by the last dispatch tick",
		},
	)

	DispatchQuotaSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_dispatch_quota_skips_total",
			Help: "Videos deferred because their account hit its daily quota",
		},
		[]string{"account"},
	)

	VideosScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "publisher_videos_scheduled_total",
			Help: "Total number of videos assigned a publish slot",
		},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordPublishAttempt records one platform publish attempt
func RecordPublishAttempt(platform, outcome string, duration float64, size int64) {
	PublishAttemptsTotal.WithLabelValues(platform, outcome).Inc()
	PublishDuration.WithLabelValues(platform).Observe(duration)
	if size > 0 {
		PublishUploadBytes.WithLabelValues(platform).Observe(float64(size))
	}
}

// RecordTick records one dispatch tick and the due backlog it saw
func RecordTick(outcome string, due int) {
	DispatchTicksTotal.WithLabelValues(outcome).Inc()
	if due >= 0 {
		DispatchDueVideos.Set(float64(due))
	}
}

// RecordQuotaSkip records a video deferred by its account's daily quota
func RecordQuotaSkip(account string) {
	DispatchQuotaSkipsTotal.WithLabelValues(account).Inc()
}
