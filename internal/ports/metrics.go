package ports

// Metric names passed to MetricsCollector. Collectors map each name onto a
// concrete series; unknown names fall into a generic per-operation series.
const (
	// MetricLLMRequest is the latency operation for one model request.
	MetricLLMRequest = "llm_request"
	// MetricLLMRequests counts model requests by provider, model and status.
	MetricLLMRequests = "llm_requests_total"
	// MetricLLMTokens counts tokens by provider, model and token_type.
	MetricLLMTokens = "llm_tokens_total"
	// MetricCircuitState is the breaker state gauge (0 closed, 1 open, 2 half-open).
	MetricCircuitState = "llm_circuit_state"
	// MetricCircuitRejections counts requests rejected by an open breaker.
	MetricCircuitRejections = "llm_circuit_rejections_total"

	// MetricEvaluation is the latency operation for one evaluation.
	MetricEvaluation = "evaluation"
	// MetricEvaluations counts completed evaluations by tier and model.
	MetricEvaluations = "evaluations_total"
	// MetricConfidenceUnavailable counts neutral-default substitutions.
	MetricConfidenceUnavailable = "confidence_unavailable_total"
	// MetricSignalScore is the histogram of a subscore; the "signal" label
	// names it (hallucination_risk, self_confidence, hedging, verbosity).
	MetricSignalScore = "signal_score"

	// MetricTelemetryDropped counts events evicted from a full queue.
	MetricTelemetryDropped = "telemetry_dropped_total"
	// MetricTelemetryFailures counts events abandoned after retries.
	MetricTelemetryFailures = "telemetry_failures_total"
	// MetricTelemetryDelivered counts events fully accepted by the sink.
	MetricTelemetryDelivered = "telemetry_delivered_total"
	// MetricTelemetryQueueDepth is the current emitter queue depth.
	MetricTelemetryQueueDepth = "telemetry_queue_depth"
)
