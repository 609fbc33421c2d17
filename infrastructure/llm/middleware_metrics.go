package llm

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ahrav/go-vigil/internal/ports"
)

// metricsLLM records latency, request and token counters per request.
type metricsLLM struct {
	next      CoreLLM
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware records llm_request_duration_seconds, llm_requests_total
// and llm_tokens_total for every request through collector.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, provider: provider, collector: collector}
	}
}

// DoRequest implements CoreLLM.
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)
	if m.collector == nil {
		return response, tokensIn, tokensOut, err
	}

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   requestStatus(err),
	}
	m.collector.RecordLatency(ports.MetricLLMRequest, time.Since(start), labels)
	m.collector.RecordCounter(ports.MetricLLMRequests, 1, labels)
	if err == nil {
		m.collector.RecordCounter(ports.MetricLLMTokens, float64(tokensIn), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter(ports.MetricLLMTokens, float64(tokensOut), withLabel(labels, "token_type", "output"))
	}
	return response, tokensIn, tokensOut, err
}

func (m *metricsLLM) GetModel() string      { return m.next.GetModel() }
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }

func requestStatus(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &pe) && pe.StatusCode > 0:
		return strconv.Itoa(pe.StatusCode)
	default:
		return ErrorKind(err)
	}
}

func withLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}
