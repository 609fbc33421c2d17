// Package testutils provides deterministic collaborators for package tests:
// a scripted model client and a recording telemetry sink.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-vigil/internal/ports"
)

// ratingMarker identifies the follow-up confidence question.
const ratingMarker = "how confident are you"

// MockLLMClient implements ports.LLMClient with deterministic responses
// selected by prompt substring. Confidence follow-up questions are answered
// with a fixed rating.
type MockLLMClient struct {
	mu sync.Mutex

	model     string
	responses []MockResponse
	fallback  string
	rating    string

	// Err, when set, is returned by every call.
	Err error
	// FailRatings makes only the confidence follow-up fail.
	FailRatings bool
	// Delay is slept (honoring ctx) before each call returns.
	Delay time.Duration

	calls int
	last  string
	rates int
}

// MockResponse defines a pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is matched case-insensitively against prompts.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
}

// NewMockLLMClient creates a client answering every prompt with fallback
// and every confidence question with "0.8".
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{
		model:    model,
		fallback: "This is a standard response for testing purposes with moderate length.",
		rating:   "0.8",
	}
}

// AddResponse registers a pattern. Earlier patterns win.
func (m *MockLLMClient) AddResponse(r MockResponse) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// SetFallback sets the response for unmatched prompts.
func (m *MockLLMClient) SetFallback(response string) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
	return m
}

// SetRating sets the raw reply to confidence questions.
func (m *MockLLMClient) SetRating(reply string) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rating = reply
	return m
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	text, _, _, err := m.CompleteWithUsage(ctx, prompt, options)
	return text, err
}

// CompleteWithUsage implements ports.LLMClient. Token counts use the same
// four-characters-per-token estimate as EstimateTokens.
func (m *MockLLMClient) CompleteWithUsage(ctx context.Context, prompt string, _ map[string]any) (string, int, int, error) {
	if prompt == "" {
		return "", 0, 0, fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	isRating := strings.Contains(strings.ToLower(prompt), ratingMarker)
	if isRating {
		m.rates++
	} else {
		m.calls++
		m.last = prompt
	}
	delay, err, failRatings := m.Delay, m.Err, m.FailRatings
	text := m.match(prompt, isRating)
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	if ctx.Err() != nil {
		return "", 0, 0, ctx.Err()
	}
	if err != nil {
		return "", 0, 0, err
	}
	if isRating && failRatings {
		return "", 0, 0, fmt.Errorf("rating unavailable")
	}

	in, _ := m.EstimateTokens(prompt)
	out, _ := m.EstimateTokens(text)
	return text, in, out, nil
}

func (m *MockLLMClient) match(prompt string, isRating bool) string {
	if isRating {
		return m.rating
	}
	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Response
		}
	}
	return m.fallback
}

// EstimateTokens implements ports.LLMClient.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string { return m.model }

// Calls returns the number of primary (non-rating) requests.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// RatingCalls returns the number of confidence follow-up requests.
func (m *MockLLMClient) RatingCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rates
}

// LastPrompt returns the most recent primary prompt.
func (m *MockLLMClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

var _ ports.LLMClient = (*MockLLMClient)(nil)
