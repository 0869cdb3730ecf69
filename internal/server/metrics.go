// metrics.go registers all Prometheus metrics for the HTTP server and the
// retrieval path, and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the route pattern rather than the raw URL path.
	labelHandler = "handler"
)

// Metrics holds all Prometheus metrics owned by the service. A single
// instance is shared by the server and the agent's retrieval hook, so tests
// can inject a fresh prometheus.Registry without polluting the default one.
type Metrics struct {
	// chatRequestsTotal counts completed chat requests, partitioned by
	// outcome: "ok", "degraded", or "timeout".
	chatRequestsTotal *prometheus.CounterVec

	// chatDurationSeconds records the wall-clock duration of each chat request.
	chatDurationSeconds *prometheus.HistogramVec

	// retrievalTotal counts how context was obtained for each query.
	retrievalTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the router,
	// partitioned by method, route pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers all metrics against reg and returns the populated
// Metrics. promauto.With(reg) is used so that each call registers into the
// provided registry rather than the global default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		chatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tbrag",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of chat requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		chatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tbrag",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of chat requests from receipt to response.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),

		retrievalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tbrag",
			Name:      "retrieval_total",
			Help:      "Context retrievals partitioned by outcome: selected_text, hit, empty, error, unavailable.",
		}, []string{"outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tbrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tbrag",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// ObserveRetrieval records one retrieval outcome. It is passed to the agent
// as its OnRetrieval hook.
func (m *Metrics) ObserveRetrieval(outcome string) {
	m.retrievalTotal.WithLabelValues(outcome).Inc()
}

// observeChat records the outcome and duration of one chat request.
func (m *Metrics) observeChat(outcome string, elapsed time.Duration) {
	m.chatRequestsTotal.WithLabelValues(outcome).Inc()
	m.chatDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// middleware records request count and latency per route pattern.
// Unmatched routes are grouped under "unmatched" to bound label cardinality.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		handler := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				handler = pattern
			}
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(elapsed.Seconds())
	})
}
