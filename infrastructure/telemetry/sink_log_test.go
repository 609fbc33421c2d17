package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/chainguard-dev/clog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-vigil/internal/domain"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(clog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()

	require.NoError(t, sink.SubmitMetrics(ctx, []domain.MetricPoint{
		{Name: domain.MetricRisk, Value: 0.54, Tags: []string{"env:test", "risk_tier:moderate"}},
		{Name: domain.MetricLatency, Value: 812},
	}))
	require.NoError(t, sink.SubmitLog(ctx, domain.LogEvent{
		RequestID:   "r1",
		Status:      domain.StatusSuccess,
		RiskTier:    "moderate",
		Source:      domain.DefaultSource,
		Service:     "vigil",
		Environment: "test",
	}))
	require.NoError(t, sink.SubmitMetrics(ctx, nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "telemetry metrics", lines[0]["msg"])
	assert.Equal(t, 0.54, lines[0][domain.MetricRisk])
	assert.Equal(t, "env:test,risk_tier:moderate", lines[0]["tags"])

	assert.Equal(t, "LLM request completed: request_id=r1", lines[1]["msg"])
	assert.Equal(t, "r1", lines[1]["request_id"])
	assert.Equal(t, "moderate", lines[1]["risk_tier"])
	assert.Equal(t, domain.DefaultSource, lines[1]["ddsource"])
}

func TestLogSink_ContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := clog.WithLogger(context.Background(), clog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, NewLogSink(nil).SubmitLog(ctx, domain.LogEvent{RequestID: "r2", Status: domain.StatusError}))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "LLM request failed: request_id=r2", lines[0]["msg"])
}
