package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahrav/go-vigil/infrastructure/signals"
	"github.com/ahrav/go-vigil/internal/ports"
)

// confidencePromptTemplate asks the model to rate its own prior answer.
const confidencePromptTemplate = `You previously answered this question:
Question: %s
Your answer: %s

On a scale from 0.0 to 1.0, how confident are you that your answer is accurate and complete?
Respond with ONLY a number between 0.0 and 1.0, nothing else.`

// ConfidenceRater implements ports.ConfidenceRater by sending a follow-up
// rating question through a model client.
type ConfidenceRater struct {
	client ports.LLMClient
}

var _ ports.ConfidenceRater = (*ConfidenceRater)(nil)

// NewConfidenceRater creates a rater that queries client.
func NewConfidenceRater(client ports.LLMClient) (*ConfidenceRater, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client cannot be nil")
	}
	return &ConfidenceRater{client: client}, nil
}

// RateConfidence asks the model how confident it is in priorResponse and
// parses the first number of its reply.
func (r *ConfidenceRater) RateConfidence(ctx context.Context, prompt, priorResponse string) (float64, error) {
	reply, err := r.client.Complete(ctx, fmt.Sprintf(confidencePromptTemplate, prompt, priorResponse),
		map[string]any{"temperature": 0.0, "max_tokens": 16})
	if err != nil {
		return 0, fmt.Errorf("confidence query failed: %w", err)
	}

	v, ok := signals.ParseConfidence(strings.TrimSpace(reply))
	if !ok {
		return 0, fmt.Errorf("%w: no rating in %d-byte reply", signals.ErrConfidenceOutOfRange, len(reply))
	}
	return v, nil
}
