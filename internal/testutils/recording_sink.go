package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-vigil/internal/domain"
	"github.com/ahrav/go-vigil/internal/ports"
)

// ErrSinkUnavailable is the error injected by RecordingSink.
var ErrSinkUnavailable = errors.New("sink unavailable")

// RecordingSink implements ports.TelemetrySink in memory. Failures can be
// scripted per call kind; a negative count fails forever.
type RecordingSink struct {
	mu sync.Mutex

	metrics [][]domain.MetricPoint
	logs    []domain.LogEvent

	metricAttempts int
	logAttempts    int

	failMetrics int
	failLogs    int

	// Gate, when non-nil, blocks every call until it is closed or ctx is done.
	Gate chan struct{}
}

// NewRecordingSink creates an always-succeeding sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// FailMetrics makes the next n SubmitMetrics calls fail.
func (s *RecordingSink) FailMetrics(n int) *RecordingSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMetrics = n
	return s
}

// FailLogs makes the next n SubmitLog calls fail.
func (s *RecordingSink) FailLogs(n int) *RecordingSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogs = n
	return s
}

func (s *RecordingSink) wait(ctx context.Context) error {
	if s.Gate == nil {
		return nil
	}
	select {
	case <-s.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitMetrics implements ports.TelemetrySink.
func (s *RecordingSink) SubmitMetrics(ctx context.Context, points []domain.MetricPoint) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricAttempts++
	if s.failMetrics != 0 {
		if s.failMetrics > 0 {
			s.failMetrics--
		}
		return ErrSinkUnavailable
	}
	s.metrics = append(s.metrics, append([]domain.MetricPoint(nil), points...))
	return nil
}

// SubmitLog implements ports.TelemetrySink.
func (s *RecordingSink) SubmitLog(ctx context.Context, event domain.LogEvent) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logAttempts++
	if s.failLogs != 0 {
		if s.failLogs > 0 {
			s.failLogs--
		}
		return ErrSinkUnavailable
	}
	s.logs = append(s.logs, event)
	return nil
}

// MetricBatches returns the accepted metric batches.
func (s *RecordingSink) MetricBatches() [][]domain.MetricPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]domain.MetricPoint(nil), s.metrics...)
}

// Logs returns the accepted log events.
func (s *RecordingSink) Logs() []domain.LogEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LogEvent(nil), s.logs...)
}

// Attempts returns how many SubmitMetrics and SubmitLog calls were made,
// failed ones included.
func (s *RecordingSink) Attempts() (metrics, logs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricAttempts, s.logAttempts
}

var _ ports.TelemetrySink = (*RecordingSink)(nil)

// FailureRecord is one SubmitFailure call seen by RecordingEmitter.
type FailureRecord struct {
	RequestID string
	Model     string
	ErrorType string
}

// RecordingEmitter implements ports.TelemetryEmitter in memory.
type RecordingEmitter struct {
	mu       sync.Mutex
	results  []domain.EvaluationResult
	failures []FailureRecord
}

// Submit implements ports.TelemetryEmitter.
func (e *RecordingEmitter) Submit(_ context.Context, result domain.EvaluationResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append(e.results, result)
}

// SubmitFailure implements ports.TelemetryEmitter.
func (e *RecordingEmitter) SubmitFailure(_ context.Context, requestID, model, errorType string, _ time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = append(e.failures, FailureRecord{RequestID: requestID, Model: model, ErrorType: errorType})
}

// Results returns the submitted results.
func (e *RecordingEmitter) Results() []domain.EvaluationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.EvaluationResult(nil), e.results...)
}

// Failures returns the submitted failures.
func (e *RecordingEmitter) Failures() []FailureRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]FailureRecord(nil), e.failures...)
}

// Events returns the total number of submissions of either kind.
func (e *RecordingEmitter) Events() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.results) + len(e.failures)
}

var _ ports.TelemetryEmitter = (*RecordingEmitter)(nil)
