// Package metrics owns the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	quizzesGenerated *prometheus.CounterVec
	quizAttempts     prometheus.Counter
	authEvents       *prometheus.CounterVec
	wsConnections    prometheus.Gauge
}

// New builds collectors on a private registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		quizzesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quizzes_generated_total",
			Help:      "Quiz generation outcomes.",
		}, []string{"status"}),
		quizAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_attempts_total",
			Help:      "Submitted quiz attempts.",
		}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by kind.",
		}, []string{"event"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open leaderboard WebSocket connections.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.quizzesGenerated, m.quizAttempts, m.authEvents, m.wsConnections,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency keyed by the ServeMux pattern,
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// QuizGenerated counts a generation attempt by outcome ("ok" or "failed").
func (m *Metrics) QuizGenerated(status string) {
	if m == nil {
		return
	}
	m.quizzesGenerated.WithLabelValues(status).Inc()
}

// QuizAttempted counts a submitted attempt.
func (m *Metrics) QuizAttempted() {
	if m == nil {
		return
	}
	m.quizAttempts.Inc()
}

// AuthEvent counts an authentication event such as "login" or "refresh".
func (m *Metrics) AuthEvent(event string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event).Inc()
}

// WSConnected adjusts the open WebSocket gauge by delta.
func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.wsConnections.Add(float64(delta))
}
