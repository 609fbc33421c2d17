// Package llm connects the chat path to a generative model provider. A
// provider implements CoreLLM and is wrapped in a middleware chain that adds
// timeouts, retries, rate limiting, circuit breaking, Prometheus metrics and
// OpenTelemetry spans.
//
// Basic usage:
//
//	client, err := llm.NewClient("google", llm.ClientConfig{
//	    APIKey: os.Getenv("MODEL_API_KEY"),
//	    Model:  "gemini-2.5-flash",
//	    Middleware: []llm.Middleware{
//	        llm.TracingMiddleware("llm-observability-service"),
//	        llm.TimeoutMiddleware(30 * time.Second),
//	    },
//	})
//	text, tokensIn, tokensOut, err := client.CompleteWithUsage(ctx, "What is AI?", nil)
package llm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ahrav/go-vigil/internal/ports"
)

// CoreLLM is the minimal interface a model provider implements. Middleware
// wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends prompt to the provider and returns the generated text
	// with input and output token counts.
	DoRequest(
		ctx context.Context,
		prompt string,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// TokenEstimator approximates token counts before a request is made.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// ClientConfig holds the options for creating a model client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model is the provider model name. Empty selects the provider default.
	Model string

	// BaseURL overrides the provider endpoint. Empty uses the default.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero means no bound at
	// that level; use TimeoutMiddleware to bound whole requests.
	Timeout time.Duration

	// TokenEstimator overrides the character-based estimator.
	TokenEstimator TokenEstimator

	// Middleware is applied in order; the first entry is the outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM to add cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient over a wrapped CoreLLM.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient creates a client for the named provider and applies the
// configured middleware chain.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %v)", providerType, Providers())
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return NewClientFromCore(core, config), nil
}

// NewClientFromCore wraps an existing CoreLLM with the configured middleware.
// It is used for custom providers and tests.
func NewClientFromCore(core CoreLLM, config ClientConfig) *Client {
	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewTokenCounter()
	}

	return &Client{core: core, estimator: estimator}
}

// Complete sends a prompt and returns the response text only.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and returns the response text with the
// input and output token counts reported by the provider.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model name of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under providerType. It is not
// safe to call concurrently with NewClient; providers register from init.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// Providers lists the registered provider names in sorted order.
func Providers() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
