// Package metrics provides the Prometheus collectors of the extractor.
// Crawl metrics:
//   - mhra_fetch_attempts_total: Counter with kind and outcome labels
//   - mhra_fetch_duration_seconds: Histogram with kind label
//   - mhra_fetch_retries_total: Counter
//   - mhra_records_committed_total, mhra_duplicates_skipped_total,
//     mhra_subtree_failures_total: Counters with level label
//   - mhra_run_in_progress, mhra_last_run_timestamp_seconds: Gauges
//
// Status server metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// All metrics are registered with the Prometheus default registry during package
// initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhra_fetch_attempts_total",
			Help: "Outbound fetch attempts by target kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mhra_fetch_duration_seconds",
			Help:    "Latency of a single fetch attempt",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 90},
		},
		[]string{"kind"},
	)

	FetchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mhra_fetch_retries_total",
			Help: "Fetch retries after a transient failure",
		},
	)

	RecordsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhra_records_committed_total",
			Help: "Records committed to the catalog by level",
		},
		[]string{"level"},
	)

	DuplicatesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhra_duplicates_skipped_total",
			Help: "Duplicate sibling records skipped by level",
		},
		[]string{"level"},
	)

	SubtreeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhra_subtree_failures_total",
			Help: "Subtrees skipped after a fetch failure by level",
		},
		[]string{"level"},
	)

	RunInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mhra_run_in_progress",
			Help: "1 while an extraction run is active",
		},
	)

	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mhra_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		},
	)

	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of status server rate limiter buckets",
		},
	)
)

func init() {
	prometheus.MustRegister(FetchAttempts)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(FetchRetries)
	prometheus.MustRegister(RecordsCommitted)
	prometheus.MustRegister(DuplicatesSkipped)
	prometheus.MustRegister(SubtreeFailures)
	prometheus.MustRegister(RunInProgress)
	prometheus.MustRegister(LastRunTimestamp)
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
}
