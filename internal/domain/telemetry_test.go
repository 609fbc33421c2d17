package domain

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTags() Tags {
	return Tags{Source: "llm-observability", Environment: "test", Service: "vigil", Model: "gemini-2.5-flash"}
}

func TestCorrelationID(t *testing.T) {
	hexID := regexp.MustCompile(`^[0-9a-f]{16}$`)

	a := CorrelationID("What is AI?")
	b := CorrelationID("What is AI?")
	c := CorrelationID("What is ML?")

	assert.Regexp(t, hexID, a)
	assert.Equal(t, a, b, "identical prompts must hash identically")
	assert.NotEqual(t, a, c, "different prompts should not collide")
	assert.Len(t, CorrelationID(""), CorrelationIDLength)
	assert.NotContains(t, a, "AI")
}

func TestNewTelemetryEvent(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	r := EvaluationResult{
		RequestID:      "req-1",
		Model:          "gemini-2.5-flash",
		SelfConfidence: 0.6,
		HedgingScore:   0.28,
		VerbosityScore: 0.99,
		VerbosityRatio: 20,
		RiskScore:      0.54,
		Tier:           TierModerate,
		AnswerLength:   60,
		PromptHash:     CorrelationID("What is AI?"),
		LatencyMS:      812.5,
		InputTokens:    4,
		OutputTokens:   80,
		TotalTokens:    84,
		Timestamp:      at,
	}

	ev := NewTelemetryEvent(r, testTags())

	require.Len(t, ev.Metrics, 7)
	byName := map[string]MetricPoint{}
	for _, p := range ev.Metrics {
		byName[p.Name] = p
		assert.Equal(t, at.Unix(), p.Timestamp)
		assert.Contains(t, p.Tags, "env:test")
		assert.Contains(t, p.Tags, "risk_tier:moderate")
		assert.Contains(t, p.Tags, "model_name:gemini-2.5-flash")
	}
	assert.Equal(t, 812.5, byName[MetricLatency].Value)
	assert.Equal(t, 0.6, byName[MetricSelfConfidence].Value)
	assert.Equal(t, 0.54, byName[MetricRisk].Value)
	assert.Equal(t, 60.0, byName[MetricAnswerLength].Value)
	assert.Equal(t, 84.0, byName[MetricTokenCount].Value)

	assert.Equal(t, "req-1", ev.Log.RequestID)
	assert.Equal(t, StatusSuccess, ev.Log.Status)
	assert.Equal(t, "moderate", ev.Log.RiskTier)
	assert.Equal(t, "LLM request completed: request_id=req-1", ev.Log.Message())
	assert.Equal(t, r.PromptHash, ev.Log.Fields()["prompt_hash"])
}

func TestNewFailureEvent(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	ev := NewFailureEvent("req-9", "rate_limit", 1500*time.Millisecond, at, testTags())

	require.Len(t, ev.Metrics, 1)
	assert.Equal(t, MetricErrorCount, ev.Metrics[0].Name)
	assert.Equal(t, 1.0, ev.Metrics[0].Value)
	assert.Equal(t, StatusError, ev.Log.Status)
	assert.Equal(t, "rate_limit", ev.Log.ErrorType)
	assert.Equal(t, 1500.0, ev.Log.LatencyMS)
	assert.Equal(t, "LLM request failed: request_id=req-9", ev.Log.Message())
}

// TestTelemetryEvent_CarriesNoContent checks the structural invariant: no
// string-typed field of the event can hold free text, and a serialized
// event never contains the prompt or response.
func TestTelemetryEvent_CarriesNoContent(t *testing.T) {
	prompt := "Tell me the secret launch codes for project nightingale"
	response := "The nightingale codes might possibly be 0000 but I think you should ask someone else"

	in := EvaluationInput{Prompt: prompt, Response: response, Model: "m"}
	r := EvaluationResult{
		RequestID:    "req-1",
		Model:        in.Model,
		PromptHash:   CorrelationID(in.Prompt),
		AnswerLength: WordCount(in.Response),
		Tier:         TierLow,
	}
	ev := NewTelemetryEvent(r, testTags())

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	fields, err := json.Marshal(ev.Log.Fields())
	require.NoError(t, err)

	for _, blob := range []string{string(raw), string(fields), ev.Log.Message()} {
		assert.NotContains(t, blob, "nightingale")
		assert.NotContains(t, blob, "launch codes")
		assert.NotContains(t, blob, "ask someone else")
	}

	allowed := map[string]bool{
		"RequestID": true, "PromptHash": true, "Model": true, "Status": true,
		"ErrorType": true, "RiskTier": true, "Source": true, "Environment": true, "Service": true,
	}
	typ := reflect.TypeOf(LogEvent{})
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Type.Kind() == reflect.String {
			assert.True(t, allowed[f.Name], "unexpected string field %s on LogEvent", f.Name)
		}
		lower := strings.ToLower(f.Name)
		assert.NotContains(t, lower, "prompt_text")
		assert.NotEqual(t, "prompt", lower)
		assert.NotEqual(t, "response", lower)
	}
}
