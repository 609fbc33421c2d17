// Package middleware provides the Prometheus implementation of the metrics
// collector used by the model middleware, the evaluator and the telemetry
// emitter.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-vigil/internal/ports"
)

const namespace = "vigil"

// scoreBuckets partitions [0,1] subscores in tenths.
var scoreBuckets = prometheus.LinearBuckets(0.1, 0.1, 10)

// PrometheusMetrics implements ports.MetricsCollector using Prometheus.
type PrometheusMetrics struct {
	llmLatency         *prometheus.HistogramVec
	llmRequests        *prometheus.CounterVec
	llmTokens          *prometheus.CounterVec
	circuitState       *prometheus.GaugeVec
	circuitRejections  *prometheus.CounterVec
	evaluationLatency  prometheus.Histogram
	evaluations        *prometheus.CounterVec
	confidenceFallback prometheus.Counter
	signalScores       *prometheus.HistogramVec
	telemetryDropped   prometheus.Counter
	telemetryFailures  prometheus.Counter
	telemetryDelivered prometheus.Counter
	queueDepth         prometheus.Gauge
	operationLatency   *prometheus.HistogramVec
	operationCounter   *prometheus.CounterVec
	operationGauges    *prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers all series with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated; the server passes the
// registry it exposes on /metrics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of model requests.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"provider", "model", "status"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Model requests by outcome.",
		}, []string{"provider", "model", "status"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by model requests.",
		}, []string{"provider", "model", "token_type"}),
		circuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "llm_circuit_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"model"}),
		circuitRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_circuit_rejections_total",
			Help:      "Requests rejected by an open circuit breaker.",
		}, []string{"model"}),
		evaluationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent computing quality-risk signals for one response.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Completed evaluations by risk tier.",
		}, []string{"tier", "model"}),
		confidenceFallback: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confidence_unavailable_total",
			Help:      "Evaluations that used the neutral confidence default.",
		}),
		signalScores: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "signal_score",
			Help:      "Distribution of quality-risk subscores and the composite.",
			Buckets:   scoreBuckets,
		}, []string{"signal", "model"}),
		telemetryDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_dropped_total",
			Help:      "Telemetry events evicted from a full emitter queue.",
		}),
		telemetryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_failures_total",
			Help:      "Telemetry events abandoned after exhausting retries.",
		}),
		telemetryDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_delivered_total",
			Help:      "Telemetry events accepted by the sink.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "telemetry_queue_depth",
			Help:      "Events waiting in the telemetry emitter queue.",
		}),
		operationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of operations without a dedicated series.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operationCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Counters without a dedicated series.",
		}, []string{"operation"}),
		operationGauges: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operation_state",
			Help:      "Gauges without a dedicated series.",
		}, []string{"metric"}),
	}
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	switch operation {
	case ports.MetricLLMRequest:
		pm.llmLatency.WithLabelValues(
			label(labels, "provider"), label(labels, "model"), label(labels, "status"),
		).Observe(duration.Seconds())
	case ports.MetricEvaluation:
		pm.evaluationLatency.Observe(duration.Seconds())
	default:
		pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(
			label(labels, "provider"), label(labels, "model"), label(labels, "status"),
		).Add(value)
	case ports.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(
			label(labels, "provider"), label(labels, "model"), label(labels, "token_type"),
		).Add(value)
	case ports.MetricCircuitRejections:
		pm.circuitRejections.WithLabelValues(label(labels, "model")).Add(value)
	case ports.MetricEvaluations:
		pm.evaluations.WithLabelValues(label(labels, "tier"), label(labels, "model")).Add(value)
	case ports.MetricConfidenceUnavailable:
		pm.confidenceFallback.Add(value)
	case ports.MetricTelemetryDropped:
		pm.telemetryDropped.Add(value)
	case ports.MetricTelemetryFailures:
		pm.telemetryFailures.Add(value)
	case ports.MetricTelemetryDelivered:
		pm.telemetryDelivered.Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricCircuitState:
		pm.circuitState.WithLabelValues(label(labels, "model")).Set(value)
	case ports.MetricTelemetryQueueDepth:
		pm.queueDepth.Set(value)
	default:
		pm.operationGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements ports.MetricsCollector. Only subscores have a
// dedicated histogram; other names are observed as operation latencies.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricSignalScore:
		pm.signalScores.WithLabelValues(label(labels, "signal"), label(labels, "model")).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

// label returns labels[key], or "unknown" when absent or empty.
func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return "unknown"
}
