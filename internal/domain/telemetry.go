package domain

import (
	"fmt"
	"time"
)

// Metric names shipped to the sink.
const (
	MetricLatency        = "llm.request.latency_ms"
	MetricSelfConfidence = "llm.self_confidence"
	MetricRisk           = "llm.hallucination_risk"
	MetricAnswerLength   = "llm.answer_length"
	MetricTokenCount     = "llm.token.count"
	MetricHedging        = "llm.hedging_score"
	MetricVerbosity      = "llm.verbosity_score"
	MetricErrorCount     = "llm.error.count"
)

// DefaultSource is the ddsource value of shipped log events.
const DefaultSource = "llm-observability"

// Log event status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Tags is the fixed tag set attached to every telemetry event.
type Tags struct {
	Source      string
	Environment string
	Service     string
	Model       string
}

// List renders the tags in key:value form, with extra key:value pairs
// appended in order.
func (t Tags) List(extra ...string) []string {
	out := []string{
		"source:" + t.Source,
		"env:" + t.Environment,
		"service:" + t.Service,
	}
	if t.Model != "" {
		out = append(out, "model_name:"+t.Model)
	}
	return append(out, extra...)
}

// MetricPoint is one value of one metric series.
type MetricPoint struct {
	Name      string
	Value     float64
	Timestamp int64
	Tags      []string
}

// LogEvent is the structured log record shipped for an exchange. Its field
// set is closed: there is no place for prompt or response text.
type LogEvent struct {
	RequestID             string  `json:"request_id"`
	PromptHash            string  `json:"prompt_hash,omitempty"`
	Model                 string  `json:"model_name,omitempty"`
	Status                string  `json:"status"`
	ErrorType             string  `json:"error_type,omitempty"`
	LatencyMS             float64 `json:"latency_ms"`
	HallucinationRisk     float64 `json:"hallucination_risk"`
	RiskTier              string  `json:"risk_tier,omitempty"`
	SelfConfidence        float64 `json:"self_confidence"`
	ConfidenceUnavailable bool    `json:"confidence_unavailable"`
	HedgingScore          float64 `json:"hedging_score"`
	VerbosityScore        float64 `json:"verbosity_score"`
	VerbosityRatio        float64 `json:"verbosity_ratio"`
	AnswerLength          int     `json:"answer_length"`
	InputTokens           int     `json:"input_tokens"`
	OutputTokens          int     `json:"output_tokens"`
	TotalTokens           int     `json:"token_count"`
	Timestamp             int64   `json:"timestamp"`

	Source      string `json:"ddsource"`
	Environment string `json:"env"`
	Service     string `json:"service"`
}

// Message is the human readable summary line of the log event.
func (e LogEvent) Message() string {
	if e.Status == StatusError {
		return fmt.Sprintf("LLM request failed: request_id=%s", e.RequestID)
	}
	return fmt.Sprintf("LLM request completed: request_id=%s", e.RequestID)
}

// Fields returns the event attributes as a flat map, for sinks that accept
// arbitrary structured properties.
func (e LogEvent) Fields() map[string]any {
	f := map[string]any{
		"request_id":             e.RequestID,
		"status":                 e.Status,
		"latency_ms":             e.LatencyMS,
		"hallucination_risk":     e.HallucinationRisk,
		"self_confidence":        e.SelfConfidence,
		"confidence_unavailable": e.ConfidenceUnavailable,
		"hedging_score":          e.HedgingScore,
		"verbosity_score":        e.VerbosityScore,
		"verbosity_ratio":        e.VerbosityRatio,
		"answer_length":          e.AnswerLength,
		"input_tokens":           e.InputTokens,
		"output_tokens":          e.OutputTokens,
		"token_count":            e.TotalTokens,
		"timestamp":              e.Timestamp,
		"env":                    e.Environment,
	}
	if e.PromptHash != "" {
		f["prompt_hash"] = e.PromptHash
	}
	if e.Model != "" {
		f["model_name"] = e.Model
	}
	if e.RiskTier != "" {
		f["risk_tier"] = e.RiskTier
	}
	if e.ErrorType != "" {
		f["error_type"] = e.ErrorType
	}
	return f
}

// TelemetryEvent is the wire-level form of one exchange: a batch of metric
// points and one log event. It is built only from an EvaluationResult (or
// a failure record) and a Tags value.
type TelemetryEvent struct {
	RequestID string
	Metrics   []MetricPoint
	Log       LogEvent
}

// NewTelemetryEvent converts a result into its telemetry form.
func NewTelemetryEvent(r EvaluationResult, tags Tags) TelemetryEvent {
	if r.Model != "" {
		tags.Model = r.Model
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	unix := ts.Unix()
	tagList := tags.List("risk_tier:" + r.Tier.String())

	point := func(name string, v float64) MetricPoint {
		return MetricPoint{Name: name, Value: v, Timestamp: unix, Tags: tagList}
	}

	status := StatusSuccess
	if r.Error {
		status = StatusError
	}

	return TelemetryEvent{
		RequestID: r.RequestID,
		Metrics: []MetricPoint{
			point(MetricLatency, r.LatencyMS),
			point(MetricSelfConfidence, r.SelfConfidence),
			point(MetricRisk, r.RiskScore),
			point(MetricAnswerLength, float64(r.AnswerLength)),
			point(MetricTokenCount, float64(r.TotalTokens)),
			point(MetricHedging, r.HedgingScore),
			point(MetricVerbosity, r.VerbosityScore),
		},
		Log: LogEvent{
			RequestID:             r.RequestID,
			PromptHash:            r.PromptHash,
			Model:                 tags.Model,
			Status:                status,
			LatencyMS:             r.LatencyMS,
			HallucinationRisk:     r.RiskScore,
			RiskTier:              r.Tier.String(),
			SelfConfidence:        r.SelfConfidence,
			ConfidenceUnavailable: r.ConfidenceUnavailable,
			HedgingScore:          r.HedgingScore,
			VerbosityScore:        r.VerbosityScore,
			VerbosityRatio:        r.VerbosityRatio,
			AnswerLength:          r.AnswerLength,
			InputTokens:           r.InputTokens,
			OutputTokens:          r.OutputTokens,
			TotalTokens:           r.TotalTokens,
			Timestamp:             unix,
			Source:                tags.Source,
			Environment:           tags.Environment,
			Service:               tags.Service,
		},
	}
}

// NewFailureEvent builds the event recorded when the model call itself
// failed: a single error-count point and an error log. errorType is a
// classification such as "rate_limit", never a provider message.
func NewFailureEvent(requestID, errorType string, latency time.Duration, at time.Time, tags Tags) TelemetryEvent {
	unix := at.Unix()
	latencyMS := float64(latency) / float64(time.Millisecond)
	return TelemetryEvent{
		RequestID: requestID,
		Metrics: []MetricPoint{{
			Name:      MetricErrorCount,
			Value:     1,
			Timestamp: unix,
			Tags:      tags.List(),
		}},
		Log: LogEvent{
			RequestID:   requestID,
			Model:       tags.Model,
			Status:      StatusError,
			ErrorType:   errorType,
			LatencyMS:   latencyMS,
			Timestamp:   unix,
			Source:      tags.Source,
			Environment: tags.Environment,
			Service:     tags.Service,
		},
	}
}
