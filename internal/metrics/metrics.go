package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of the comparison engine and the API. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RunCount        *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	DocumentCount   *prometheus.CounterVec
	ComparisonCount prometheus.Counter
	SignaturesBuilt prometheus.Counter
	registry        prometheus.Gatherer
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration panics.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request duration in seconds",
			},
			[]string{"method", "endpoint"},
		),
		RunCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "similarity_runs_total",
				Help: "Total number of comparison runs",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "similarity_run_duration_seconds",
				Help:    "Comparison run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		DocumentCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "similarity_documents_total",
				Help: "Documents processed, by outcome",
			},
			[]string{"outcome"},
		),
		ComparisonCount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "similarity_comparisons_total",
				Help: "Pairwise signature comparisons performed",
			},
		),
		SignaturesBuilt: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "similarity_signatures_built_total",
				Help: "MinHash signatures built",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RequestCount,
		m.RequestDuration,
		m.RunCount,
		m.RunDuration,
		m.DocumentCount,
		m.ComparisonCount,
		m.SignaturesBuilt,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRun(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunCount.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) DocumentDone(outcome string) {
	if m == nil {
		return
	}
	m.DocumentCount.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ComparisonsDone(n int) {
	if m == nil {
		return
	}
	m.ComparisonCount.Add(float64(n))
}

func (m *Metrics) SignatureBuilt() {
	if m == nil {
		return
	}
	m.SignaturesBuilt.Inc()
}

func (m *Metrics) ObserveRequest(method, endpoint, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}
