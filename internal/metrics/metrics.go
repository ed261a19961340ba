package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// renderDurationBuckets covers the range renders actually take. Short
// slideshows finish in a few seconds, long multi-group renders in minutes.
var renderDurationBuckets = []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// Metrics holds Prometheus counters, gauges and histograms for the service.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	jobsCreatedTotal   *prometheus.CounterVec
	jobsCompletedTotal *prometheus.CounterVec
	jobsFailedTotal    *prometheus.CounterVec
	activeJobs         prometheus.Gauge
	renderDuration     prometheus.Histogram
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	jobsCreatedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slidecast_jobs_created_total",
		Help: "Total number of jobs accepted, by kind",
	}, []string{"kind"})
	jobsCompletedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slidecast_jobs_completed_total",
		Help: "Total number of jobs finished successfully, by kind",
	}, []string{"kind"})
	jobsFailedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slidecast_jobs_failed_total",
		Help: "Total number of jobs that ended in failure, by kind",
	}, []string{"kind"})
	activeJobs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slidecast_active_jobs",
		Help: "Number of jobs that have not reached a terminal status",
	})
	renderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "slidecast_render_duration_seconds",
		Help:    "Wall-clock time spent rendering a slideshow",
		Buckets: renderDurationBuckets,
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		jobsCreatedTotal,
		jobsCompletedTotal,
		jobsFailedTotal,
		activeJobs,
		renderDuration,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		errorsTotal:        errorsTotal,
		jobsCreatedTotal:   jobsCreatedTotal,
		jobsCompletedTotal: jobsCompletedTotal,
		jobsFailedTotal:    jobsFailedTotal,
		activeJobs:         activeJobs,
		renderDuration:     renderDuration,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncJobsCreated increments the created counter for the given job kind.
func (m *Metrics) IncJobsCreated(kind string) {
	m.jobsCreatedTotal.WithLabelValues(kind).Inc()
}

// IncJobsCompleted increments the completed counter for the given job kind.
func (m *Metrics) IncJobsCompleted(kind string) {
	m.jobsCompletedTotal.WithLabelValues(kind).Inc()
}

// IncJobsFailed increments the failed counter for the given job kind.
func (m *Metrics) IncJobsFailed(kind string) {
	m.jobsFailedTotal.WithLabelValues(kind).Inc()
}

// SetActiveJobs sets the active jobs gauge.
func (m *Metrics) SetActiveJobs(n int) {
	m.activeJobs.Set(float64(n))
}

// ObserveRenderDuration records how long one render took in seconds.
func (m *Metrics) ObserveRenderDuration(seconds float64) {
	m.renderDuration.Observe(seconds)
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active jobs).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
