// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yield_ledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yield_ledger_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	sweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yield_ledger_sweep_runs_total",
			Help: "Total number of maturity sweep runs",
		},
		[]string{"result"},
	)

	sweepItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yield_ledger_sweep_items_total",
			Help: "Investments handled by the maturity sweep",
		},
		[]string{"outcome"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yield_ledger_sweep_duration_seconds",
			Help:    "Duration of maturity sweep runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	rateFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yield_ledger_rate_fetch_total",
			Help: "Rate oracle lookups by source",
		},
		[]string{"currency", "source"},
	)

	rateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yield_ledger_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"group"},
	)
)

// Rate lookup sources.
const (
	SourceCache    = "cache"
	SourceProvider = "provider"
	SourceStale    = "stale"
	SourceFailed   = "failed"
)

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveSweep records a finished sweep run and its per-item outcomes.
func ObserveSweep(processed, skipped, failed int, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sweepRunsTotal.WithLabelValues(result).Inc()
	sweepItemsTotal.WithLabelValues("processed").Add(float64(processed))
	sweepItemsTotal.WithLabelValues("skipped").Add(float64(skipped))
	sweepItemsTotal.WithLabelValues("failed").Add(float64(failed))
	sweepDuration.Observe(elapsed.Seconds())
}

// RateLookup records where a rate was served from.
func RateLookup(currency, source string) {
	rateFetchTotal.WithLabelValues(currency, source).Inc()
}

// RateLimited records a rejected request.
func RateLimited(group string) {
	rateLimitExceeded.WithLabelValues(group).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
