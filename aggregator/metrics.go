package aggregator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the aggregator.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	QuotesTotal       prometheus.Counter
	RetriesTotal      prometheus.Counter
	FailuresTotal     *prometheus.CounterVec
	AggregationsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffs_source_requests_total",
			Help: "Total source calls dispatched by the aggregator.",
		},
		[]string{"class", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tariffs_source_duration_seconds",
			Help:    "Latency of a source call including retries.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 180},
		},
		[]string{"class"},
	)
	quotes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tariffs_quotes_total",
			Help: "Total number of quotes returned to callers.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tariffs_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffs_source_failures_total",
			Help: "Total number of failed sources by reason.",
		},
		[]string{"reason"},
	)
	aggregations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffs_aggregations_total",
			Help: "Total aggregation calls by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(requests, requestDuration, quotes, retries, failures, aggregations)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		QuotesTotal:       quotes,
		RetriesTotal:      retries,
		FailuresTotal:     failures,
		AggregationsTotal: aggregations,
	}
}

// IncRequest counts a settled source call.
func (m *Metrics) IncRequest(class, outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(class, outcome).Inc()
}

// ObserveDuration records how long a source took to settle.
func (m *Metrics) ObserveDuration(class string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(class).Observe(d.Seconds())
}

// AddQuotes counts quotes handed back to callers.
func (m *Metrics) AddQuotes(n int) {
	if m == nil {
		return
	}
	m.QuotesTotal.Add(float64(n))
}

// IncRetries counts one retried source call.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncFailure increments the failure counter for a reason label.
func (m *Metrics) IncFailure(reason string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(reason).Inc()
}

// IncAggregation counts a finished comparison or analysis by outcome.
func (m *Metrics) IncAggregation(outcome string) {
	if m == nil {
		return
	}
	m.AggregationsTotal.WithLabelValues(outcome).Inc()
}
