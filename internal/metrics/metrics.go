// Package metrics exposes Prometheus collectors for the blog server.
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

// Render outcomes.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	ssrRenderDurationSeconds   *prometheus.HistogramVec
	ssrRenderCacheTotal        *prometheus.CounterVec
	ssrRendererBuildsTotal     *prometheus.CounterVec
	ssrRendererReady           prometheus.Gauge
	articleStoreErrorsTotal    *prometheus.CounterVec

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
				Buckets: []float64{0.005, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		ssrRenderDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssr_render_duration_seconds",
				Help:    "Histogram of page render latencies, labeled by result.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"result"},
		)

		ssrRenderCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssr_render_cache_total",
				Help: "Component cache lookups, labeled by hit or miss.",
			},
			[]string{"result"},
		)

		ssrRendererBuildsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssr_renderer_builds_total",
				Help: "Renderer builds from the bundle and template, labeled by result.",
			},
			[]string{"result"},
		)

		ssrRendererReady = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ssr_renderer_ready",
				Help: "1 once a renderer is installed, 0 while pages show the placeholder.",
			},
		)

		articleStoreErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "article_store_errors_total",
				Help: "Article store failures surfaced as 5xx, labeled by operation.",
			},
			[]string{"op"},
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

// ObserveRender records the latency of one page render.
func ObserveRender(result string, duration time.Duration) {
	Init()
	ssrRenderDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a component cache hit or miss.
func ObserveCacheLookup(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	ssrRenderCacheTotal.WithLabelValues(result).Inc()
}

// ObserveRendererBuild counts a renderer build attempt.
func ObserveRendererBuild(err error) {
	Init()
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	ssrRendererBuildsTotal.WithLabelValues(result).Inc()
}

// SetRendererReady flips the readiness gauge.
func SetRendererReady(ready bool) {
	Init()
	if ready {
		ssrRendererReady.Set(1)
		return
	}
	ssrRendererReady.Set(0)
}

// ObserveStoreError counts a failed article store call.
func ObserveStoreError(op string) {
	Init()
	articleStoreErrorsTotal.WithLabelValues(op).Inc()
}
