package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce        sync.Once
	adminRequestsTotal  *prometheus.CounterVec
	adminLatencySeconds *prometheus.HistogramVec
	adminErrorsTotal    *prometheus.CounterVec

	chatConnectionsTotal prometheus.Counter
	chatActiveSessions   prometheus.Gauge
	chatMessagesTotal    *prometheus.CounterVec
	chatSnapshotLoads    *prometheus.CounterVec

	uploadRequestsTotal *prometheus.CounterVec
	uploadRejectedTotal *prometheus.CounterVec
	uploadLatency       prometheus.Histogram

	visitsTotal            *prometheus.CounterVec
	accountDeletionsTotal  *prometheus.CounterVec
	analyticsCacheRequests *prometheus.CounterVec
)

// MetricsHandler serves the default registry in the OpenMetrics exposition format.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
}

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_errors_total",
			Help: "Total number of error responses returned by admin endpoints.",
		}, []string{"method", "route", "status"})

		chatConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Total number of chat websocket sessions opened.",
		})

		chatActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "Number of chat sessions currently attached.",
		})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages accepted.",
		}, []string{"type"})

		chatSnapshotLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_snapshot_loads_total",
			Help: "Chat snapshot reloads by stream and outcome.",
		}, []string{"stream", "outcome"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_requests_total",
			Help: "Total number of accepted image uploads.",
		}, []string{"mime"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_rejected_total",
			Help: "Total number of rejected image uploads by reason.",
		}, []string{"reason"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_latency_seconds",
			Help:    "Latency distribution of image uploads.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		})

		visitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_visits_total",
			Help: "Storefront page views by device type.",
		}, []string{"device"})

		accountDeletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "account_deletions_total",
			Help: "Account deletion cascades by outcome.",
		}, []string{"outcome"})

		analyticsCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_cache_requests_total",
			Help: "Admin analytics cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			adminRequestsTotal, adminLatencySeconds, adminErrorsTotal,
			chatConnectionsTotal, chatActiveSessions, chatMessagesTotal, chatSnapshotLoads,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatency,
			visitsTotal, accountDeletionsTotal, analyticsCacheRequests,
		)
	})
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for admin error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}

// ChatConnectionsTotal counts opened chat sessions.
func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnectionsTotal
}

// ChatActiveSessions tracks attached chat sessions.
func ChatActiveSessions() prometheus.Gauge {
	RegisterMetrics()
	return chatActiveSessions
}

// ChatMessagesSent counts accepted chat messages.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// ChatSnapshotLoads counts snapshot reloads of thread lists and feeds.
func ChatSnapshotLoads() *prometheus.CounterVec {
	RegisterMetrics()
	return chatSnapshotLoads
}

// UploadRequests counts accepted uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency records upload durations.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}

// Visits counts storefront page views.
func Visits() *prometheus.CounterVec {
	RegisterMetrics()
	return visitsTotal
}

// AccountDeletions counts account deletion cascades.
func AccountDeletions() *prometheus.CounterVec {
	RegisterMetrics()
	return accountDeletionsTotal
}

// AnalyticsCacheRequests counts analytics cache hits and misses.
func AnalyticsCacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return analyticsCacheRequests
}
