package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-vigil/internal/domain"
)

// Test that our interfaces can be implemented correctly

// mockLLMClient implements LLMClient interface
type mockLLMClient struct{ model string }

func (m *mockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	return "mock response", nil
}

func (m *mockLLMClient) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return "mock response", len(prompt) / 4, 3, nil
}

func (m *mockLLMClient) EstimateTokens(text string) (int, error) {
	// Simple estimation: ~4 characters per token
	return len(text) / 4, nil
}

func (m *mockLLMClient) GetModel() string { return m.model }

// mockRater implements ConfidenceRater interface
type mockRater struct {
	value float64
	err   error
}

func (m *mockRater) RateConfidence(ctx context.Context, prompt, prior string) (float64, error) {
	return m.value, m.err
}

// mockSink implements TelemetrySink interface
type mockSink struct {
	points []domain.MetricPoint
	logs   []domain.LogEvent
}

func (m *mockSink) SubmitMetrics(ctx context.Context, points []domain.MetricPoint) error {
	m.points = append(m.points, points...)
	return nil
}

func (m *mockSink) SubmitLog(ctx context.Context, event domain.LogEvent) error {
	m.logs = append(m.logs, event)
	return nil
}

// mockMetricsCollector implements MetricsCollector interface
type mockMetricsCollector struct {
	latencies  map[string]time.Duration
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

func newMockMetricsCollector() *mockMetricsCollector {
	return &mockMetricsCollector{
		latencies:  make(map[string]time.Duration),
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (m *mockMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.latencies[operation] = duration
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.counters[metric] += value
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.gauges[metric] = value
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.histograms[metric] = append(m.histograms[metric], value)
}

func TestInterfaceImplementations(t *testing.T) {
	ctx := context.Background()

	t.Run("LLMClient", func(t *testing.T) {
		var client LLMClient = &mockLLMClient{model: "test-model"}

		resp, err := client.Complete(ctx, "prompt", nil)
		require.NoError(t, err)
		assert.Equal(t, "mock response", resp)

		resp, in, out, err := client.CompleteWithUsage(ctx, "a prompt of some length", nil)
		require.NoError(t, err)
		assert.Equal(t, "mock response", resp)
		assert.Equal(t, 5, in)
		assert.Equal(t, 3, out)

		assert.Equal(t, "test-model", client.GetModel())
	})

	t.Run("ConfidenceRater", func(t *testing.T) {
		var rater ConfidenceRater = &mockRater{value: 0.8}
		v, err := rater.RateConfidence(ctx, "q", "a")
		require.NoError(t, err)
		assert.Equal(t, 0.8, v)

		rater = &mockRater{err: errors.New("boom")}
		_, err = rater.RateConfidence(ctx, "q", "a")
		assert.Error(t, err)
	})

	t.Run("TelemetrySink", func(t *testing.T) {
		sink := &mockSink{}
		var s TelemetrySink = sink
		require.NoError(t, s.SubmitMetrics(ctx, []domain.MetricPoint{{Name: "m", Value: 1}}))
		require.NoError(t, s.SubmitLog(ctx, domain.LogEvent{RequestID: "r"}))
		assert.Len(t, sink.points, 1)
		assert.Len(t, sink.logs, 1)
	})

	t.Run("MetricsCollector", func(t *testing.T) {
		mc := newMockMetricsCollector()
		var c MetricsCollector = mc

		c.RecordLatency("evaluate", 10*time.Millisecond, nil)
		c.RecordCounter("dropped", 1, nil)
		c.RecordCounter("dropped", 2, nil)
		c.RecordGauge("depth", 4, nil)
		c.RecordHistogram("risk", 0.5, nil)

		assert.Equal(t, 10*time.Millisecond, mc.latencies["evaluate"])
		assert.Equal(t, 3.0, mc.counters["dropped"])
		assert.Equal(t, 4.0, mc.gauges["depth"])
		assert.Equal(t, []float64{0.5}, mc.histograms["risk"])
	})
}
