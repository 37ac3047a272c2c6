package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry so
// tests can build many servers in one process.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	writes      *prometheus.CounterVec
	rateLimited prometheus.Counter
}

// NewMetrics creates and registers the server collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pinmap_api",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pinmap_api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pinmap_api",
			Name:      "location_writes_total",
			Help:      "Successful location writes by operation.",
		}, []string{"op"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pinmap_api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.writes,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest observes one finished request.
func (m *Metrics) RecordRequest(method, route string, code int, dur time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method, route).Observe(dur.Seconds())
}

// RecordWrite counts a successful create, update or delete.
func (m *Metrics) RecordWrite(op string) {
	m.writes.WithLabelValues(op).Inc()
}

// RecordRateLimited counts a rejected request.
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

// routeLabel collapses ids out of paths to keep label cardinality bounded.
func routeLabel(path string) string {
	switch {
	case path == "/health", path == "/metrics", path == "/api/locations", path == "/api/locations/geojson":
		return path
	case strings.HasPrefix(path, "/api/locations/"):
		return "/api/locations/{id}"
	default:
		return "other"
	}
}

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sc := &statusCapture{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sc, r)
			m.RecordRequest(r.Method, routeLabel(r.URL.Path), sc.code, time.Since(start))
		})
	}
}
