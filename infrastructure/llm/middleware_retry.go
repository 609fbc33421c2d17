package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// retryLLM retries transient failures with exponential backoff.
type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries requests that fail with a retryable error up to
// maxRetries times. Delays double from baseDelay, carry ±25% jitter and are
// capped at maxDelay.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// DoRequest implements CoreLLM.
func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) || attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", 0, 0, fmt.Errorf("retry interrupted after %d attempts: %w", attempts, lastErr)
		case <-time.After(backoff(attempt, r.baseDelay, r.maxDelay)):
		}
	}

	if attempts == 1 {
		return "", 0, 0, lastErr
	}
	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func (r *retryLLM) GetModel() string  { return r.next.GetModel() }
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }

// backoff returns the delay before retry number attempt+1: base doubled per
// attempt, with ±25% jitter, capped at maxDelay.
func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	attempt = min(max(attempt, 0), 30)
	delay := base * time.Duration(1<<attempt)
	// #nosec G404 - jitter does not need a cryptographic source
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay - delay/4 + jitter
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
