package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragRequestsTotal   *prometheus.CounterVec
	ragNoContextTotal  *prometheus.CounterVec
	ragRetrievedChunks *prometheus.HistogramVec
	ragRerankSurvivors *prometheus.HistogramVec
	ragDuration        *prometheus.HistogramVec

	streamTokensTotal      *prometheus.CounterVec
	streamTruncationsTotal *prometheus.CounterVec
	streamFailuresTotal    *prometheus.CounterVec

	interactionRequestsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagnosys",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagnosys",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "diagnosys",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagnosys",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total successful retrieval-augmented requests.",
		},
		[]string{"service", "endpoint"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagnosys",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total requests answered without retrieved context.",
		},
		[]string{"service", "endpoint"},
	)
	ragRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagnosys",
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	ragRerankSurvivors := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagnosys",
			Subsystem: "rag",
			Name:      "rerank_survivors",
			Help:      "Distribution of passages surviving the rerank threshold.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagnosys",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Retrieval plus rerank duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	streamTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagnosys",
			Subsystem: "stream",
			Name:      "tokens_total",
			Help:      "Total tokens relayed to streaming clients.",
		},
		[]string{"service", "model"},
	)
	streamTruncationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagnosys",
			Subsystem: "stream",
			Name:      "truncations_total",
			Help:      "Total streams truncated by the role-tag leak guard.",
		},
		[]string{"service", "model"},
	)
	streamFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagnosys",
			Subsystem: "stream",
			Name:      "failures_total",
			Help:      "Total streams terminated by a producer failure.",
		},
		[]string{"service", "model"},
	)
	interactionRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagnosys",
			Subsystem: "analysis",
			Name:      "interaction_requests_total",
			Help:      "Total drug interaction analyses by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragRequestsTotal,
		ragNoContextTotal,
		ragRetrievedChunks,
		ragRerankSurvivors,
		ragDuration,
		streamTokensTotal,
		streamTruncationsTotal,
		streamFailuresTotal,
		interactionRequestsTotal,
	)

	return &HTTPServerMetrics{
		registry:                 registry,
		requestTotal:             requestTotal,
		requestDuration:          requestDuration,
		requestInFlight:          requestInFlight,
		ragRequestsTotal:         ragRequestsTotal,
		ragNoContextTotal:        ragNoContextTotal,
		ragRetrievedChunks:       ragRetrievedChunks,
		ragRerankSurvivors:       ragRerankSurvivors,
		ragDuration:              ragDuration,
		streamTokensTotal:        streamTokensTotal,
		streamTruncationsTotal:   streamTruncationsTotal,
		streamFailuresTotal:      streamFailuresTotal,
		interactionRequestsTotal: interactionRequestsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &instrumentedWriter{ResponseWriter: w, statusCode: http.StatusOK}

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
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/profile/"):
		return "/v1/profile/{user_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRAGObservation(service, endpoint string, retrieved, survivors int, duration time.Duration) {
	m.ragRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.ragRetrievedChunks.WithLabelValues(service, endpoint).Observe(float64(retrieved))
	m.ragRerankSurvivors.WithLabelValues(service, endpoint).Observe(float64(survivors))
	m.ragDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if survivors == 0 {
		m.ragNoContextTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordStream(service, model string, tokens int, truncated, failed bool) {
	m.streamTokensTotal.WithLabelValues(service, model).Add(float64(tokens))
	if truncated {
		m.streamTruncationsTotal.WithLabelValues(service, model).Inc()
	}
	if failed {
		m.streamFailuresTotal.WithLabelValues(service, model).Inc()
	}
}

func (m *HTTPServerMetrics) RecordInteractionAnalysis(service string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.interactionRequestsTotal.WithLabelValues(service, outcome).Inc()
}

type instrumentedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *instrumentedWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
