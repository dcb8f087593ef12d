package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	submissionEventsTotal  *prometheus.CounterVec
	accessDeniedTotal      *prometheus.CounterVec
	finalGradeDistribution *prometheus.HistogramVec
	sideEffectFailures     *prometheus.CounterVec
	notificationsPublished *prometheus.CounterVec
	sseClientsActive       prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the classroom API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_http_requests_total",
			Help: "Total number of classroom API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classroom_http_latency_seconds",
			Help:    "Latency distribution for classroom API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_http_errors_total",
			Help: "Total number of error responses returned by classroom endpoints.",
		}, []string{"method", "route", "status"})

		submissionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_submission_events_total",
			Help: "Submission lifecycle transitions by event and assignment mode.",
		}, []string{"event", "mode"})

		accessDeniedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_access_denied_total",
			Help: "Attempts refused by the access gate, by reason.",
		}, []string{"reason"})

		finalGradeDistribution = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classroom_final_grade",
			Help:    "Distribution of final grades (0-100).",
			Buckets: []float64{20, 40, 60, 70, 80, 90, 100},
		}, []string{"mode"})

		sideEffectFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_side_effect_failures_total",
			Help: "Post-commit side effects that failed and were skipped.",
		}, []string{"effect"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_notifications_published_total",
			Help: "Notifications delivered to subscribers, by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "classroom_sse_clients_active",
			Help: "Currently connected notification stream clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			submissionEventsTotal,
			accessDeniedTotal,
			finalGradeDistribution,
			sideEffectFailures,
			notificationsPublished,
			sseClientsActive,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SubmissionEvents counts started, answered, submitted and graded transitions.
func SubmissionEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionEventsTotal
}

// AccessDenied counts access gate refusals.
func AccessDenied() *prometheus.CounterVec {
	RegisterMetrics()
	return accessDeniedTotal
}

// FinalGrades observes computed final grades.
func FinalGrades() *prometheus.HistogramVec {
	RegisterMetrics()
	return finalGradeDistribution
}

// SideEffectFailures counts swallowed failures of notifications, grade book and audit writes.
func SideEffectFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return sideEffectFailures
}

// NotificationsPublishedTotal counts notifications fanned out to subscribers.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// SSEClientsActive tracks open notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
