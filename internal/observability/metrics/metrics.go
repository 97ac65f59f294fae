// Package metrics exposes the service's Prometheus collectors. One
// Metrics value is created at startup and handed to the queue, the
// pipeline stages, and the HTTP layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector, registered on a private registry so
// tests can create instances freely.
type Metrics struct {
	registry *prometheus.Registry

	jobsEnqueued *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	queueDepth   prometheus.Gauge

	analyzeDuration prometheus.Histogram
	renderDuration  prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automix_jobs_enqueued_total",
			Help: "Jobs accepted by the queue, by kind.",
		}, []string{"kind"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automix_jobs_finished_total",
			Help: "Jobs finished, by kind and final status.",
		}, []string{"kind", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "automix_job_duration_seconds",
			Help:    "Job execution time, by kind.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "automix_queue_depth",
			Help: "Jobs waiting in the queue.",
		}),
		analyzeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "automix_analyze_duration_seconds",
			Help:    "Track analysis time.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "automix_render_duration_seconds",
			Help:    "Mix render time including the fallback retry.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automix_http_requests_total",
			Help: "HTTP requests, by method, route, and status class.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "automix_http_request_duration_seconds",
			Help:    "HTTP request latency, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}

	m.registry.MustRegister(
		m.jobsEnqueued,
		m.jobsFinished,
		m.jobDuration,
		m.queueDepth,
		m.analyzeDuration,
		m.renderDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the private registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// JobEnqueued implements jobqueue.Metrics.
func (m *Metrics) JobEnqueued(kind string) {
	m.jobsEnqueued.WithLabelValues(kind).Inc()
}

// JobFinished implements jobqueue.Metrics.
func (m *Metrics) JobFinished(kind, status string, elapsed time.Duration) {
	m.jobsFinished.WithLabelValues(kind, status).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// QueueDepth implements jobqueue.Metrics.
func (m *Metrics) QueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// ObserveAnalyze records one analysis run.
func (m *Metrics) ObserveAnalyze(elapsed time.Duration) {
	m.analyzeDuration.Observe(elapsed.Seconds())
}

// ObserveRender records one render run.
func (m *Metrics) ObserveRender(elapsed time.Duration) {
	m.renderDuration.Observe(elapsed.Seconds())
}

// ObserveHTTP records one handled request. path is the route pattern,
// never the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, path, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}
