// Package metrics exposes Prometheus collectors for the icon browser service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	assetFetchesTotal          *prometheus.CounterVec
	assetFetchBytesTotal       *prometheus.CounterVec
	assetFetchDurationSeconds  *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	singleExportsTotal         *prometheus.CounterVec
	exportJobsTotal            *prometheus.CounterVec
	activeWorkers              prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		assetFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iconshelf_asset_fetches_total",
				Help: "Total number of icon asset fetches, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		assetFetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iconshelf_asset_fetch_bytes_total",
				Help: "Total number of asset bytes fetched, labeled by source.",
			},
			[]string{"source"},
		)

		assetFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iconshelf_asset_fetch_duration_seconds",
				Help:    "Histogram of asset fetch latencies, labeled by source.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"source"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iconshelf_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)

		singleExportsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iconshelf_single_exports_total",
				Help: "Total number of single icon downloads, labeled by format and outcome.",
			},
			[]string{"format", "outcome"},
		)

		exportJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iconshelf_export_jobs_total",
				Help: "Total number of export jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "iconshelf_active_workers",
				Help: "Number of workers currently running an export job.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveFetch records one asset fetch.
func ObserveFetch(source, outcome string, bytesFetched int, duration time.Duration) {
	Init()
	assetFetchesTotal.WithLabelValues(source, outcome).Inc()
	if bytesFetched > 0 {
		assetFetchBytesTotal.WithLabelValues(source).Add(float64(bytesFetched))
	}
	assetFetchDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveSingleExport counts a single icon download.
func ObserveSingleExport(format, outcome string) {
	Init()
	singleExportsTotal.WithLabelValues(format, outcome).Inc()
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	exportJobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}
