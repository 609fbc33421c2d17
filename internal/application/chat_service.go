package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/ahrav/go-vigil/infrastructure/llm"
	"github.com/ahrav/go-vigil/internal/domain"
	"github.com/ahrav/go-vigil/internal/ports"
)

// ChatResult is what the transport returns to the caller.
type ChatResult struct {
	Response string
	Result   domain.EvaluationResult
}

// ChatService answers a prompt with the model, evaluates the exchange and
// hands the result to the telemetry emitter.
type ChatService struct {
	client    ports.LLMClient
	evaluator *Evaluator
	emitter   ports.TelemetryEmitter
	options   map[string]any
	now       func() time.Time
}

// NewChatService wires the service. options are passed on every model call.
func NewChatService(client ports.LLMClient, evaluator *Evaluator, emitter ports.TelemetryEmitter, options map[string]any) (*ChatService, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client cannot be nil")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if emitter == nil {
		return nil, fmt.Errorf("telemetry emitter cannot be nil")
	}
	return &ChatService{
		client:    client,
		evaluator: evaluator,
		emitter:   emitter,
		options:   options,
		now:       time.Now,
	}, nil
}

// Model returns the model identifier of the underlying client.
func (s *ChatService) Model() string { return s.client.GetModel() }

// Chat runs one exchange. A model failure is returned as a
// *domain.ModelCallError after its error-count telemetry is enqueued.
// Evaluation never fails the request except through cancellation, in which
// case ErrEvaluationAbandoned is returned and nothing is emitted.
func (s *ChatService) Chat(ctx context.Context, prompt string) (ChatResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return ChatResult{}, domain.ErrEmptyPrompt
	}

	requestID := uuid.NewString()
	model := s.client.GetModel()
	log := clog.FromContext(ctx).With("request_id", requestID).With("prompt_hash", domain.CorrelationID(prompt))

	start := s.now()
	text, inTokens, outTokens, err := s.client.CompleteWithUsage(ctx, prompt, s.options)
	latency := s.now().Sub(start)
	if err != nil {
		if ctx.Err() != nil {
			return ChatResult{}, fmt.Errorf("%w: %w", domain.ErrEvaluationAbandoned, ctx.Err())
		}
		kind := llm.ErrorKind(err)
		log.With("error_type", kind).With("latency_ms", latency.Milliseconds()).Warn("model call failed")
		s.emitter.SubmitFailure(ctx, requestID, model, kind, latency)
		return ChatResult{}, domain.NewModelCallError(requestID, model, err)
	}

	result, err := s.evaluator.EvaluateRequest(ctx, requestID, domain.EvaluationInput{
		Prompt:       prompt,
		Response:     text,
		InputTokens:  inTokens,
		OutputTokens: outTokens,
		Latency:      latency,
		Model:        model,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrEvaluationAbandoned) {
			log.With("error", err.Error()).Error("evaluation failed")
		}
		return ChatResult{}, err
	}

	s.emitter.Submit(ctx, result)
	log.With("tier", result.Tier.String()).With("latency_ms", latency.Milliseconds()).Info("chat request completed")

	return ChatResult{Response: text, Result: result}, nil
}
