// Package metrics provides Prometheus metrics export for the chat service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports chat metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Chat metrics
	chatLatency  *prometheus.HistogramVec
	chatRequests *prometheus.CounterVec
	chatInFlight prometheus.Gauge

	// Engine metrics
	bucketSelections   *prometheus.CounterVec
	generationFailures *prometheus.CounterVec

	// Store metrics
	conversations prometheus.Gauge
	messages      *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.1, 0.5, 1, 1.5, 2, 2.5, 3, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.chatLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yougpt",
			Subsystem: "chat",
			Name:      "latency_seconds",
			Help:      "Time from prompt submission to the assistant reply being applied",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"engine"},
	)

	e.chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yougpt",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of submitted prompts by outcome",
		},
		[]string{"engine", "status"},
	)

	e.chatInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "yougpt",
			Subsystem: "chat",
			Name:      "in_flight",
			Help:      "Number of generations currently in flight",
		},
	)

	e.bucketSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yougpt",
			Subsystem: "engine",
			Name:      "bucket_selections_total",
			Help:      "Total number of replies drawn from each response bucket",
		},
		[]string{"bucket"},
	)

	e.generationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yougpt",
			Subsystem: "engine",
			Name:      "generation_failures_total",
			Help:      "Total number of generation failures by reason",
		},
		[]string{"reason"},
	)

	e.conversations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "yougpt",
			Subsystem: "store",
			Name:      "conversations",
			Help:      "Number of conversations held in memory",
		},
	)

	e.messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yougpt",
			Subsystem: "store",
			Name:      "messages_total",
			Help:      "Total number of messages appended by role",
		},
		[]string{"role"},
	)

	registry.MustRegister(
		e.chatLatency,
		e.chatRequests,
		e.chatInFlight,
		e.bucketSelections,
		e.generationFailures,
		e.conversations,
		e.messages,
	)

	return e
}

// RecordChatRequest records the outcome and latency of one submitted prompt.
func (e *PrometheusExporter) RecordChatRequest(engine string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	e.chatRequests.WithLabelValues(engine, status).Inc()
	e.chatLatency.WithLabelValues(engine).Observe(latency.Seconds())
}

// IncInFlight marks a generation as started.
func (e *PrometheusExporter) IncInFlight() {
	e.chatInFlight.Inc()
}

// DecInFlight marks a generation as finished.
func (e *PrometheusExporter) DecInFlight() {
	e.chatInFlight.Dec()
}

// RecordBucket counts a reply drawn from bucket. It satisfies ai.BucketObserver.
func (e *PrometheusExporter) RecordBucket(bucket string) {
	e.bucketSelections.WithLabelValues(bucket).Inc()
}

// RecordGenerationFailure counts a failed generation.
func (e *PrometheusExporter) RecordGenerationFailure(reason string) {
	e.generationFailures.WithLabelValues(reason).Inc()
}

// SetConversations sets the number of conversations in the store.
func (e *PrometheusExporter) SetConversations(count int) {
	e.conversations.Set(float64(count))
}

// RecordMessage counts an appended message.
func (e *PrometheusExporter) RecordMessage(role string) {
	e.messages.WithLabelValues(role).Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
