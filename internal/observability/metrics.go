package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	httpRequestsTotal         *prometheus.CounterVec
	httpLatencySeconds        *prometheus.HistogramVec
	submissionSavesTotal      *prometheus.CounterVec
	submissionSubmitsTotal    *prometheus.CounterVec
	taskCompletionsTotal      prometheus.Counter
	completionRechecksTotal   *prometheus.CounterVec
	helpMessagesTotal         *prometheus.CounterVec
	notificationsPublished    *prometheus.CounterVec
	notificationStreamsActive prometheus.Gauge
	overviewCacheTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		submissionSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_saves_total",
			Help: "Submission saves by resulting status.",
		}, []string{"status"})

		submissionSubmitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_submits_total",
			Help: "Submit attempts by outcome (accepted, denied, failed).",
		}, []string{"outcome"})

		taskCompletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "task_completions_total",
			Help: "Tasks closed because every assigned student completed.",
		})

		completionRechecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_completion_rechecks_total",
			Help: "Deferred completion rechecks by stage (scheduled, processed, failed).",
		}, []string{"stage"})

		helpMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "help_messages_total",
			Help: "Help channel messages by author role.",
		}, []string{"author"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications delivered by type.",
		}, []string{"type"})

		notificationStreamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_streams_active",
			Help: "Open server-sent event notification streams.",
		})

		overviewCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_overview_cache_total",
			Help: "Task overview cache lookups by result (hit, miss).",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			submissionSavesTotal,
			submissionSubmitsTotal,
			taskCompletionsTotal,
			completionRechecksTotal,
			helpMessagesTotal,
			notificationsPublished,
			notificationStreamsActive,
			overviewCacheTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// SubmissionSaves counts saves labelled by submission status.
func SubmissionSaves() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionSavesTotal
}

// SubmissionSubmits counts submit attempts labelled by outcome.
func SubmissionSubmits() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionSubmitsTotal
}

// TaskCompletions counts tasks flipped to completed.
func TaskCompletions() prometheus.Counter {
	RegisterMetrics()
	return taskCompletionsTotal
}

// CompletionRechecks counts deferred rechecks by stage.
func CompletionRechecks() *prometheus.CounterVec {
	RegisterMetrics()
	return completionRechecksTotal
}

// HelpMessages counts help channel messages by author role.
func HelpMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return helpMessagesTotal
}

// NotificationsPublishedTotal counts notifications by type.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// NotificationStreamsActive tracks open SSE streams.
func NotificationStreamsActive() prometheus.Gauge {
	RegisterMetrics()
	return notificationStreamsActive
}

// OverviewCache counts overview cache lookups.
func OverviewCache() *prometheus.CounterVec {
	RegisterMetrics()
	return overviewCacheTotal
}
