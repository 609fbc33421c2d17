package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/go-vigil/internal/domain"
	"github.com/ahrav/go-vigil/internal/ports"
)

// LogSink writes telemetry to the structured log instead of a remote
// intake. It is used for local runs and never fails.
type LogSink struct {
	logger *clog.Logger
}

var _ ports.TelemetrySink = (*LogSink)(nil)

// NewLogSink creates a sink writing to logger, or to the context logger
// when logger is nil.
func NewLogSink(logger *clog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) log(ctx context.Context) *clog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return clog.FromContext(ctx)
}

// SubmitMetrics implements ports.TelemetrySink.
func (s *LogSink) SubmitMetrics(ctx context.Context, points []domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}
	args := make([]any, 0, 2*len(points)+2)
	for _, p := range points {
		args = append(args, p.Name, p.Value)
	}
	args = append(args, "tags", strings.Join(points[0].Tags, ","))
	s.log(ctx).Info("telemetry metrics", args...)
	return nil
}

// SubmitLog implements ports.TelemetrySink.
func (s *LogSink) SubmitLog(ctx context.Context, event domain.LogEvent) error {
	fields := event.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, 2*len(keys)+4)
	args = append(args, "ddsource", event.Source, "service", event.Service)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	s.log(ctx).Info(event.Message(), args...)
	return nil
}
