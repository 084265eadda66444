package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	lifecycleTransitions *prometheus.CounterVec
	submissionsReceived  prometheus.Counter
	gradeMutationsTotal  prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "course_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "course_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "course_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		lifecycleTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_lifecycle_transitions_total",
			Help: "Assignment lifecycle transitions applied, by target status.",
		}, []string{"to"})

		submissionsReceived = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "submissions_received_total",
			Help: "Submissions and resubmissions accepted by the engine.",
		})

		gradeMutationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grade_mutations_total",
			Help: "Grade ledger mutations recorded.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			lifecycleTransitions, submissionsReceived, gradeMutationsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// LifecycleTransitions counts applied lifecycle transitions by target status.
func LifecycleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleTransitions
}

// SubmissionsReceived counts accepted submissions.
func SubmissionsReceived() prometheus.Counter {
	RegisterMetrics()
	return submissionsReceived
}

// GradeMutations counts grade ledger mutations.
func GradeMutations() prometheus.Counter {
	RegisterMetrics()
	return gradeMutationsTotal
}
