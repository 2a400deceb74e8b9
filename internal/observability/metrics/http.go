package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics owns a private registry for the probe server and the
// retrieval pipeline. It implements the usecase observer interfaces so the
// core packages never import prometheus directly.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	stageTotal        *prometheus.CounterVec
	stageEvidence     *prometheus.HistogramVec
	shortCircuitTotal *prometheus.CounterVec
	crossEncoderTotal *prometheus.CounterVec
	routeTotal        *prometheus.CounterVec
	guardTotal        *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eve",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eve",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "eve",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eve",
			Subsystem: "retrieval",
			Name:      "stage_total",
			Help:      "Total executed retrieval stages by status.",
		},
		[]string{"service", "stage", "status"},
	)
	stageEvidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eve",
			Subsystem: "retrieval",
			Name:      "stage_evidence",
			Help:      "Distribution of evidence items contributed per stage.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "stage"},
	)
	shortCircuitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eve",
			Subsystem: "retrieval",
			Name:      "short_circuit_total",
			Help:      "Total retrievals stopped early by a confident vector hit.",
		},
		[]string{"service"},
	)
	crossEncoderTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eve",
			Subsystem: "rerank",
			Name:      "cross_encoder_total",
			Help:      "Cross-encoder invocation outcomes.",
		},
		[]string{"service", "outcome"},
	)
	routeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eve",
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Total routing decisions by tier and reason.",
		},
		[]string{"service", "tier", "reason"},
	)
	guardTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eve",
			Subsystem: "guard",
			Name:      "escalations_total",
			Help:      "Total coverage-guard escalations.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		stageTotal,
		stageEvidence,
		shortCircuitTotal,
		crossEncoderTotal,
		routeTotal,
		guardTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		service:           service,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		stageTotal:        stageTotal,
		stageEvidence:     stageEvidence,
		shortCircuitTotal: shortCircuitTotal,
		crossEncoderTotal: crossEncoderTotal,
		routeTotal:        routeTotal,
		guardTotal:        guardTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// ObserveStage implements usecase.RetrievalObserver.
func (m *HTTPServerMetrics) ObserveStage(stage string, count int, degraded bool) {
	status := "ok"
	if degraded {
		status = "degraded"
	}
	m.stageTotal.WithLabelValues(m.service, stage, status).Inc()
	m.stageEvidence.WithLabelValues(m.service, stage).Observe(float64(count))
}

// ObserveShortCircuit implements usecase.RetrievalObserver.
func (m *HTTPServerMetrics) ObserveShortCircuit() {
	m.shortCircuitTotal.WithLabelValues(m.service).Inc()
}

// ObserveCrossEncoder implements usecase.RerankObserver.
func (m *HTTPServerMetrics) ObserveCrossEncoder(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.crossEncoderTotal.WithLabelValues(m.service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordRouteDecision(tier, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.routeTotal.WithLabelValues(m.service, tier, reason).Inc()
}

func (m *HTTPServerMetrics) RecordGuardEscalation() {
	m.guardTotal.WithLabelValues(m.service).Inc()
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
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
