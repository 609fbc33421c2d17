// Package ports declares the boundaries between the evaluation core and its
// collaborators: the model client, the confidence rater, the telemetry sink
// and the metrics collector.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-vigil/internal/domain"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// CompleteWithUsage sends a completion request and also reports the
	// input and output token counts. This is the generate capability the
	// chat path depends on.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "model": string (specific model version)
	CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// ConfidenceRater asks a model to rate its own prior answer.
// Implementations return a value the caller must still range-check;
// any error is treated by the caller as "confidence unavailable".
type ConfidenceRater interface {
	RateConfidence(ctx context.Context, prompt, priorResponse string) (float64, error)
}

// TelemetrySink is the remote ingestion system for metrics and structured
// logs. Both calls may fail transiently; callers retry.
type TelemetrySink interface {
	// SubmitMetrics ships a batch of metric points in one call.
	SubmitMetrics(ctx context.Context, points []domain.MetricPoint) error

	// SubmitLog ships one structured log event.
	SubmitLog(ctx context.Context, event domain.LogEvent) error
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like drops, failures, requests, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like queue depth.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like risk scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// TelemetryEmitter is the non-blocking hand-off from the request path to
// telemetry delivery. Neither call reports an error: sink trouble is
// absorbed by the emitter.
type TelemetryEmitter interface {
	// Submit enqueues the telemetry for a completed evaluation.
	Submit(ctx context.Context, result domain.EvaluationResult)

	// SubmitFailure enqueues the error-count telemetry for a failed model
	// call. errorType is a classification tag, never provider text.
	SubmitFailure(ctx context.Context, requestID, model, errorType string, latency time.Duration)
}
