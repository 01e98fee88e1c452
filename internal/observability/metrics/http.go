package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics holds the API-side registry. Each process owns its
// registry so tests never fight over the global one.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal      *prometheus.CounterVec
	searchDuration   *prometheus.HistogramVec
	searchChunks     *prometheus.HistogramVec
	searchDegraded   *prometheus.CounterVec
	routeTotal       *prometheus.CounterVec
	planSubQueries   *prometheus.HistogramVec
	planPartialTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mrag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mrag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mrag",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total retrieval requests by collection and outcome.",
		},
		[]string{"service", "collection", "outcome"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mrag",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "collection"},
	)
	searchChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mrag",
			Subsystem: "retrieval",
			Name:      "fused_chunks",
			Help:      "Distribution of fused result sizes per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "collection"},
	)
	searchDegraded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mrag",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Total requests served with one retrieval method down.",
		},
		[]string{"service", "collection"},
	)
	routeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mrag",
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Total routing decisions by strategy and source.",
		},
		[]string{"service", "strategy", "source"},
	)
	planSubQueries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mrag",
			Subsystem: "planner",
			Name:      "sub_queries",
			Help:      "Distribution of sub-queries per planned request.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		},
		[]string{"service"},
	)
	planPartialTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mrag",
			Subsystem: "planner",
			Name:      "partial_total",
			Help:      "Total plans merged with at least one failed sub-query.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchChunks,
		searchDegraded,
		routeTotal,
		planSubQueries,
		planPartialTotal,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		searchTotal:      searchTotal,
		searchDuration:   searchDuration,
		searchChunks:     searchChunks,
		searchDegraded:   searchDegraded,
		routeTotal:       routeTotal,
		planSubQueries:   planSubQueries,
		planPartialTotal: planPartialTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/documents/") {
		return "/v1/documents/{document_id}"
	}
	return path
}

func (m *HTTPServerMetrics) RecordSearch(service, collection, outcome string, chunks int, degraded bool, duration time.Duration) {
	m.searchTotal.WithLabelValues(service, collection, outcome).Inc()
	m.searchDuration.WithLabelValues(service, collection).Observe(duration.Seconds())
	m.searchChunks.WithLabelValues(service, collection).Observe(float64(chunks))
	if degraded {
		m.searchDegraded.WithLabelValues(service, collection).Inc()
	}
}

func (m *HTTPServerMetrics) RecordRouteDecision(service, strategy, source string) {
	m.routeTotal.WithLabelValues(service, strategy, source).Inc()
}

func (m *HTTPServerMetrics) RecordPlan(service string, subQueries int, partial bool) {
	m.planSubQueries.WithLabelValues(service).Observe(float64(subQueries))
	if partial {
		m.planPartialTotal.WithLabelValues(service).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
