package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	PagesFetchedTotal  prometheus.Counter
	RowsHarvestedTotal prometheus.Counter
	DeclaredReviews    *prometheus.GaugeVec
	ErrorsTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_requests_total",
			Help: "Total HTTP requests issued by the harvester.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_request_duration_seconds",
			Help:    "HTTP request latency for harvester requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_pages_fetched_total",
			Help: "Total number of pages fetched and parsed.",
		},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_rows_harvested_total",
			Help: "Total number of review rows written to the output table.",
		},
	)
	declared := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvester_declared_reviews",
			Help: "Review total declared in the header of page 1.",
		},
		[]string{"target"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, rows, declared, errorsTotal)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		PagesFetchedTotal:  pages,
		RowsHarvestedTotal: rows,
		DeclaredReviews:    declared,
		ErrorsTotal:        errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the pages fetched counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.Inc()
}

// AddRows adds n to the harvested rows counter.
func (m *Metrics) AddRows(n int) {
	if m == nil {
		return
	}
	m.RowsHarvestedTotal.Add(float64(n))
}

// SetDeclared records the declared review total of a target.
func (m *Metrics) SetDeclared(target string, total int) {
	if m == nil {
		return
	}
	m.DeclaredReviews.WithLabelValues(target).Set(float64(total))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
