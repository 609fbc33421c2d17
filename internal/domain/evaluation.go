// Package domain holds the value types of the quality-risk pipeline: the
// completed exchange handed to evaluation, the derived result, the risk
// tiers and the telemetry event shipped to the sink.
package domain

import (
	"strings"
	"time"
)

// EvaluationInput is an immutable snapshot of one completed model exchange.
// It carries raw prompt and response text and therefore must never be
// logged, persisted or attached to telemetry. It is consumed by the
// evaluator and dropped once an EvaluationResult exists.
type EvaluationInput struct {
	// Prompt is the text the caller submitted to the model.
	Prompt string
	// Response is the text the model produced.
	Response string
	// InputTokens is the token count reported for the prompt.
	InputTokens int
	// OutputTokens is the token count reported for the response.
	OutputTokens int
	// Latency is the wall-clock duration of the primary model call.
	Latency time.Duration
	// Model identifies the model that produced Response.
	Model string
}

// EvaluationResult is the derived, content-free record of one exchange.
// It is created once by the evaluator and never mutated afterwards; the
// telemetry emitter owns it until it has been shipped.
type EvaluationResult struct {
	RequestID string
	Model     string

	// SelfConfidence is the model's own confidence in its answer, in [0,1].
	SelfConfidence float64
	// ConfidenceUnavailable is set when SelfConfidence is the neutral
	// default because elicitation failed.
	ConfidenceUnavailable bool
	// HedgingScore is the saturated frequency of uncertainty markers, in [0,1].
	HedgingScore float64
	// VerbosityScore is the normalized response/prompt length ratio, in [0,1].
	VerbosityScore float64
	// VerbosityRatio is the raw response/prompt word ratio before normalization.
	VerbosityRatio float64
	// RiskScore is the composite hallucination-risk score, in [0,1].
	RiskScore float64
	// Tier is the risk tier derived from RiskScore and the configured thresholds.
	Tier RiskTier

	// AnswerLength is the response length in words.
	AnswerLength int
	// PromptHash is the 16 hex character correlation identifier of the prompt.
	PromptHash string

	LatencyMS    float64
	InputTokens  int
	OutputTokens int
	TotalTokens  int

	// Error marks a result recorded for a failed exchange.
	Error bool

	Timestamp time.Time
}

// WordCount returns the number of whitespace separated words in s.
// Both the verbosity analyzer and the answer length use this definition.
func WordCount(s string) int { return len(strings.Fields(s)) }

// Clamp01 restricts v to the closed interval [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
