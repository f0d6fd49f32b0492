package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the indexing pipeline: per-document outcomes and
// durations, chunk yield, and how long events sat in the queue.
type WorkerMetrics struct {
	registry *prometheus.Registry

	processedTotal  *prometheus.CounterVec
	processingTime  *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	chunksPerSource *prometheus.HistogramVec
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagnosys",
			Subsystem: "worker",
			Name:      "documents_processed_total",
			Help:      "Documents that finished the indexing pipeline, by outcome.",
		},
		[]string{"service", "status"},
	)
	// Extraction plus embedding dominates; buckets reach minutes, not the
	// sub-second default.
	processingTime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagnosys",
			Subsystem: "worker",
			Name:      "document_processing_seconds",
			Help:      "Wall time to extract, chunk, embed and index one document.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "diagnosys",
			Subsystem:   "worker",
			Name:        "documents_in_flight",
			Help:        "Documents currently in the indexing pipeline.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	chunksPerSource := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagnosys",
			Subsystem: "worker",
			Name:      "chunks_indexed",
			Help:      "Chunks produced per indexed document.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagnosys",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(processedTotal, processingTime, inFlight, chunksPerSource, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		processedTotal:  processedTotal,
		processingTime:  processingTime,
		inFlight:        inFlight,
		chunksPerSource: chunksPerSource,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.inFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.inFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.processedTotal.WithLabelValues(service, status).Inc()
	m.processingTime.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveChunksIndexed(service string, count int) {
	m.chunksPerSource.WithLabelValues(service).Observe(float64(count))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
