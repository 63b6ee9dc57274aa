// Package metrics exposes Prometheus collectors for the product copy service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	productFetchTotal           *prometheus.CounterVec
	productFetchDurationSeconds *prometheus.HistogramVec
	productFetchFallbacksTotal  prometheus.Counter
	productCacheLookupsTotal    *prometheus.CounterVec
	rateLimitDelaySeconds       *prometheus.HistogramVec
	contentGenerationsTotal     *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		productFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_fetch_total",
				Help: "Total number of product page fetches, labeled by site, source and outcome.",
			},
			[]string{"site", "source", "outcome"},
		)

		productFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "product_fetch_duration_seconds",
				Help:    "Histogram of product page fetch latencies, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		productFetchFallbacksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "product_fetch_fallbacks_total",
				Help: "Total number of static fetches that fell back to the headless browser.",
			},
		)

		productCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_cache_lookups_total",
				Help: "Total number of product cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetch_rate_limit_delay_seconds",
				Help:    "Time fetches spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)

		contentGenerationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_generations_total",
				Help: "Total number of content generation calls, labeled by status.",
			},
			[]string{"status"},
		)

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
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(site, source, outcome string, duration time.Duration) {
	Init()
	productFetchTotal.WithLabelValues(SanitizeSite(site), source, outcome).Inc()
	productFetchDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveFallback increments the static-to-headless fallback counter.
func ObserveFallback() {
	Init()
	productFetchFallbacksTotal.Inc()
}

// ObserveCacheLookup records a cache hit, miss or error.
func ObserveCacheLookup(result string) {
	Init()
	productCacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records time spent blocked on the fetch rate limiter.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// ObserveGeneration records a content generation outcome.
func ObserveGeneration(status string) {
	Init()
	contentGenerationsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
