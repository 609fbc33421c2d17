package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-vigil/infrastructure/llm"
	"github.com/ahrav/go-vigil/infrastructure/signals"
	"github.com/ahrav/go-vigil/internal/domain"
	"github.com/ahrav/go-vigil/internal/testutils"
)

func newTestChatService(t *testing.T, client *testutils.MockLLMClient, elicitor signals.ConfidenceElicitor) (*ChatService, *testutils.RecordingEmitter) {
	t.Helper()
	emitter := &testutils.RecordingEmitter{}
	svc, err := NewChatService(client, newTestEvaluator(t, elicitor, nil), emitter, nil)
	require.NoError(t, err)
	return svc, emitter
}

func TestChatService_Chat(t *testing.T) {
	client := testutils.NewMockLLMClient("gemini-2.5-flash").
		AddResponse(testutils.MockResponse{Pattern: "what is ai", Response: scenarioResponse})
	svc, emitter := newTestChatService(t, client, signals.StaticElicitor(0.6))

	out, err := svc.Chat(context.Background(), "What is AI?")
	require.NoError(t, err)

	assert.Equal(t, scenarioResponse, out.Response)
	assert.Equal(t, domain.TierModerate, out.Result.Tier)
	assert.Equal(t, "gemini-2.5-flash", out.Result.Model)
	assert.NotEmpty(t, out.Result.RequestID)
	assert.Positive(t, out.Result.TotalTokens)

	results := emitter.Results()
	require.Len(t, results, 1)
	assert.Equal(t, out.Result, results[0])
	assert.Empty(t, emitter.Failures())
	assert.Equal(t, 1, client.Calls())
}

func TestChatService_QueryConfidence(t *testing.T) {
	client := testutils.NewMockLLMClient("m").SetRating("0.9")
	rater, err := llm.NewConfidenceRater(client)
	require.NoError(t, err)
	elicitor, err := NewConfidenceElicitor(ConfidenceConfig{Strategy: ConfidenceChain}, rater, time.Second)
	require.NoError(t, err)

	svc, _ := newTestChatService(t, client, elicitor)
	out, err := svc.Chat(context.Background(), "Explain Go interfaces")
	require.NoError(t, err)

	assert.InDelta(t, 0.9, out.Result.SelfConfidence, 1e-9)
	assert.False(t, out.Result.ConfidenceUnavailable)
	assert.Equal(t, 1, client.RatingCalls())
}

func TestChatService_DefaultConfidenceIgnoresMentionsInAnswer(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
	}{
		{"default", DefaultEvaluationConfig().Confidence.Strategy},
		{"unset", ""},
		{"chain", ConfidenceChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testutils.NewMockLLMClient("m").
				AddResponse(testutils.MockResponse{Pattern: "election", Response: "Recent polls report results with confidence: 95%, within the margin of error."}).
				SetRating("0.2")
			rater, err := llm.NewConfidenceRater(client)
			require.NoError(t, err)
			elicitor, err := NewConfidenceElicitor(ConfidenceConfig{Strategy: tt.strategy}, rater, time.Second)
			require.NoError(t, err)

			svc, _ := newTestChatService(t, client, elicitor)
			out, err := svc.Chat(context.Background(), "Who leads the election?")
			require.NoError(t, err)

			assert.InDelta(t, 0.2, out.Result.SelfConfidence, 1e-9)
			assert.False(t, out.Result.ConfidenceUnavailable)
			assert.Equal(t, 1, client.RatingCalls())
		})
	}
}

func TestChatService_RatingFailureIsAbsorbed(t *testing.T) {
	client := testutils.NewMockLLMClient("m")
	client.FailRatings = true
	rater, err := llm.NewConfidenceRater(client)
	require.NoError(t, err)
	elicitor, err := NewConfidenceElicitor(ConfidenceConfig{Strategy: ConfidenceQuery}, rater, time.Second)
	require.NoError(t, err)

	svc, emitter := newTestChatService(t, client, elicitor)
	out, err := svc.Chat(context.Background(), "Explain Go interfaces")
	require.NoError(t, err)
	assert.True(t, out.Result.ConfidenceUnavailable)
	assert.Len(t, emitter.Results(), 1)
}

func TestChatService_EmptyPrompt(t *testing.T) {
	client := testutils.NewMockLLMClient("m")
	svc, emitter := newTestChatService(t, client, nil)

	_, err := svc.Chat(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyPrompt)
	assert.Zero(t, client.Calls())
	assert.Zero(t, emitter.Events())
}

func TestChatService_ModelFailure(t *testing.T) {
	client := testutils.NewMockLLMClient("gpt-4o-mini")
	client.Err = &llm.ProviderError{Type: llm.ErrorTypeRateLimit, Provider: "openai", StatusCode: 429, Message: "slow down"}
	svc, emitter := newTestChatService(t, client, nil)

	_, err := svc.Chat(context.Background(), "hello")
	require.Error(t, err)

	var mce *domain.ModelCallError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, "gpt-4o-mini", mce.Model)

	assert.Empty(t, emitter.Results())
	failures := emitter.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, testutils.FailureRecord{RequestID: mce.RequestID, Model: "gpt-4o-mini", ErrorType: "rate_limit"}, failures[0])
}

func TestChatService_CanceledRequestEmitsNothing(t *testing.T) {
	t.Run("during model call", func(t *testing.T) {
		client := testutils.NewMockLLMClient("m")
		client.Delay = time.Second
		svc, emitter := newTestChatService(t, client, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := svc.Chat(ctx, "hello")
		assert.ErrorIs(t, err, domain.ErrEvaluationAbandoned)
		assert.Zero(t, emitter.Events())
	})

	t.Run("during evaluation", func(t *testing.T) {
		client := testutils.NewMockLLMClient("m")
		svc, emitter := newTestChatService(t, client, blockingElicitor{})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := svc.Chat(ctx, "hello")
		assert.ErrorIs(t, err, domain.ErrEvaluationAbandoned)
		assert.Zero(t, emitter.Events())
	})
}

func TestNewChatService_Validation(t *testing.T) {
	e := newTestEvaluator(t, nil, nil)
	client := testutils.NewMockLLMClient("m")
	emitter := &testutils.RecordingEmitter{}

	_, err := NewChatService(nil, e, emitter, nil)
	assert.Error(t, err)
	_, err = NewChatService(client, nil, emitter, nil)
	assert.Error(t, err)
	_, err = NewChatService(client, e, nil, nil)
	assert.Error(t, err)
}
