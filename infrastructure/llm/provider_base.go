package llm

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Request option bounds shared by providers.
const (
	// DefaultMaxTokens caps generated output when the caller sets no limit.
	DefaultMaxTokens = 1024
	// MaxTemperature accommodates providers such as Gemini that accept up to 2.
	MaxTemperature = 2.0
	// MinTimeout and MaxTimeout bound ClientConfig.Timeout.
	MinTimeout = 1 * time.Second
	MaxTimeout = 10 * time.Minute
)

// BaseProvider holds the model name shared by all providers.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model name. It is safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name. It is safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the provider-independent view of a request option map.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// Temperature and TopP are nil when the provider default applies.
	Temperature *float64
	TopP        *float64
	System      string
}

// ParseRequestOptions reads the recognized keys ("max_tokens", "model",
// "system", "temperature", "top_p") from opts. Missing or invalid entries
// fall back to defaults; unknown keys are ignored.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: DefaultMaxTokens,
		Model:     defaultModel,
	}

	if v, ok := opts["max_tokens"].(int); ok && v > 0 {
		options.MaxTokens = v
	}
	if v, ok := opts["model"].(string); ok && v != "" {
		options.Model = v
	}
	if v, ok := opts["system"].(string); ok {
		options.System = v
	}
	if v, ok := asFloat(opts["temperature"]); ok && v >= 0 && v <= MaxTemperature {
		options.Temperature = &v
	}
	if v, ok := asFloat(opts["top_p"]); ok && v >= 0 && v <= 1 {
		options.TopP = &v
	}

	return options
}

func asFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	default:
		return 0, false
	}
}

// TokenCounter estimates token counts from character length.
type TokenCounter struct {
	// CharactersPerToken is the average characters per token.
	CharactersPerToken float64
}

// NewTokenCounter returns a counter tuned for English text.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens implements TokenEstimator.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/tc.CharactersPerToken) + 1
}

// GetTokenCount returns actualCount when the provider reported one and an
// estimate from text otherwise.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}

// ValidateBaseURL checks that baseURL is an absolute http(s) URL. An empty
// string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsedURL.String(), nil
}

// ValidateTimeout clamps timeout into [MinTimeout, MaxTimeout]. Zero or
// negative values return zero, meaning no client-level timeout.
func ValidateTimeout(timeout time.Duration) time.Duration {
	switch {
	case timeout <= 0:
		return 0
	case timeout < MinTimeout:
		return MinTimeout
	case timeout > MaxTimeout:
		return MaxTimeout
	default:
		return timeout
	}
}
