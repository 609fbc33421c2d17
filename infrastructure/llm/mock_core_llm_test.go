package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

type contextKey string

const testContextKey contextKey = "test-key"

var errSimulated = errors.New("simulated failure")

// MockCoreLLM is a scripted CoreLLM for middleware tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int

	CallCount   int
	LastPrompt  string
	LastOpts    map[string]any
	LastContext context.Context
}

func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.LastContext = ctx
	delay, failUntil, err := m.ResponseDelay, m.FailUntilAttempt, m.Error
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	if failUntil > 0 && call <= failUntil {
		if err != nil {
			return "", 0, 0, err
		}
		return "", 0, 0, errSimulated
	}
	if failUntil == 0 && err != nil {
		return "", 0, 0, err
	}

	return m.Response, m.TokensIn, m.TokensOut, nil
}

func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// recordingCollector is a ports.MetricsCollector that keeps every call.
type recordingCollector struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
	latency  []map[string]string
	labels   []map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (r *recordingCollector) RecordLatency(_ string, _ time.Duration, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latency = append(r.latency, labels)
}

func (r *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := metric
	if tt, ok := labels["token_type"]; ok {
		key += "/" + tt
	}
	r.counters[key] += value
	r.labels = append(r.labels, labels)
}

func (r *recordingCollector) RecordGauge(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[metric] = value
}

func (r *recordingCollector) RecordHistogram(string, float64, map[string]string) {}
