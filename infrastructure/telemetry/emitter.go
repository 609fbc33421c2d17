// Package telemetry ships evaluation results to the remote metrics and
// logs sink. Delivery is decoupled from the request path: Submit enqueues
// into a bounded drop-oldest queue and a small worker pool delivers with
// bounded retries.
package telemetry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-vigil/internal/domain"
	"github.com/ahrav/go-vigil/internal/ports"
)

var validate = validator.New()

// Emitter defaults.
const (
	DefaultCapacity       = 1024
	DefaultWorkers        = 2
	DefaultMaxRetries     = 3
	DefaultBaseDelay      = 200 * time.Millisecond
	DefaultMaxDelay       = 5 * time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// ErrEmitterClosed is returned by Start after Close.
var ErrEmitterClosed = errors.New("telemetry emitter closed")

// EmitterConfig tunes the emitter. Zero values select the defaults.
type EmitterConfig struct {
	Capacity   int `yaml:"capacity" validate:"gte=0,lte=1000000"`
	Workers    int `yaml:"workers" validate:"gte=0,lte=64"`
	MaxRetries int `yaml:"max_retries" validate:"gte=0,lte=10"`
	// BaseDelay is the first backoff; it doubles per retry up to MaxDelay.
	BaseDelay time.Duration `yaml:"base_delay" validate:"gte=0"`
	MaxDelay  time.Duration `yaml:"max_delay" validate:"gte=0"`
	// MaxJitter adds up to this much random delay to each backoff.
	MaxJitter time.Duration `yaml:"max_jitter" validate:"gte=0"`
	// AttemptTimeout bounds each sink call.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"gte=0"`
}

func (c EmitterConfig) withDefaults() EmitterConfig {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxJitter == 0 {
		c.MaxJitter = c.BaseDelay / 2
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	return c
}

// Stats is a snapshot of emitter counters.
type Stats struct {
	Submitted int64
	Delivered int64
	Dropped   int64
	Failed    int64
	// Depth is the number of queued events; InFlight counts events a worker
	// is delivering. Both count against capacity.
	Depth    int
	InFlight int
}

// Emitter delivers telemetry events to a sink in the background. Submit is
// safe for concurrent use and never blocks on the sink.
type Emitter struct {
	sink    ports.TelemetrySink
	tags    domain.Tags
	metrics ports.MetricsCollector
	cfg     EmitterConfig

	mu       sync.Mutex
	ring     []domain.TelemetryEvent
	head     int
	size     int
	inflight int
	closed   bool
	wake     chan struct{}
	closing  chan struct{}

	group  *errgroup.Group
	cancel context.CancelFunc

	submitted atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

var _ ports.TelemetryEmitter = (*Emitter)(nil)

// NewEmitter creates an emitter for sink. metrics may be nil.
func NewEmitter(sink ports.TelemetrySink, tags domain.Tags, metrics ports.MetricsCollector, cfg EmitterConfig) (*Emitter, error) {
	if sink == nil {
		return nil, fmt.Errorf("telemetry sink cannot be nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("emitter configuration validation failed: %w", err)
	}
	cfg = cfg.withDefaults()

	return &Emitter{
		sink:    sink,
		tags:    tags,
		metrics: metrics,
		cfg:     cfg,
		ring:    make([]domain.TelemetryEvent, cfg.Capacity),
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
	}, nil
}

// Submit converts a completed evaluation into a telemetry event and
// enqueues it.
func (e *Emitter) Submit(ctx context.Context, result domain.EvaluationResult) {
	e.enqueue(ctx, domain.NewTelemetryEvent(result, e.tags))
}

// SubmitFailure enqueues the error-count event for a failed model call.
// errorType is a classification tag, never provider message text.
func (e *Emitter) SubmitFailure(ctx context.Context, requestID, model, errorType string, latency time.Duration) {
	tags := e.tags
	if model != "" {
		tags.Model = model
	}
	e.enqueue(ctx, domain.NewFailureEvent(requestID, errorType, latency, time.Now(), tags))
}

// enqueue appends ev, evicting the oldest queued event when queued and
// in-flight events already fill the capacity. When every slot is in flight
// ev itself is dropped.
func (e *Emitter) enqueue(ctx context.Context, ev domain.TelemetryEvent) {
	e.submitted.Add(1)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.recordDrop(ctx, ev.RequestID, "emitter closed")
		return
	}
	var evicted string
	if e.size+e.inflight >= len(e.ring) {
		if e.size == 0 {
			e.mu.Unlock()
			e.recordDrop(ctx, ev.RequestID, "queue full")
			return
		}
		evicted = e.ring[e.head].RequestID
		e.ring[e.head] = domain.TelemetryEvent{}
		e.head = (e.head + 1) % len(e.ring)
		e.size--
	}
	e.ring[(e.head+e.size)%len(e.ring)] = ev
	e.size++
	e.recordDepth(e.size)
	e.mu.Unlock()

	if evicted != "" {
		e.recordDrop(ctx, evicted, "queue full")
	}

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Emitter) dequeue() (domain.TelemetryEvent, bool) {
	e.mu.Lock()
	if e.size == 0 {
		e.mu.Unlock()
		return domain.TelemetryEvent{}, false
	}
	ev := e.ring[e.head]
	e.ring[e.head] = domain.TelemetryEvent{}
	e.head = (e.head + 1) % len(e.ring)
	e.size--
	e.inflight++
	e.recordDepth(e.size)
	e.mu.Unlock()

	return ev, true
}

// release frees the slot of a dequeued event once delivery has finished.
func (e *Emitter) release() {
	e.mu.Lock()
	e.inflight--
	e.mu.Unlock()
}

// Start launches the worker pool. Workers exit when ctx is done, or after
// Close once the queue is drained. Start may be called once.
func (e *Emitter) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEmitterClosed
	}
	if e.group != nil {
		return fmt.Errorf("telemetry emitter already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	e.cancel = cancel
	e.group = g

	for range e.cfg.Workers {
		g.Go(func() error {
			e.work(ctx)
			return nil
		})
	}

	clog.FromContext(ctx).With("workers", e.cfg.Workers).With("capacity", e.cfg.Capacity).
		Info("telemetry emitter started")
	return nil
}

func (e *Emitter) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if ev, ok := e.dequeue(); ok {
			e.deliver(ctx, ev)
			e.release()
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-e.closing:
			// Closed and drained.
			if e.Depth() == 0 {
				return
			}
		case <-e.wake:
		}
	}
}

// deliver ships the metric batch, then the log. A part that succeeded is
// never resent, so each sink call is attempted at most MaxRetries+1 times.
func (e *Emitter) deliver(ctx context.Context, ev domain.TelemetryEvent) {
	log := clog.FromContext(ctx).With("request_id", ev.RequestID)

	err := e.retry(ctx, "submit metrics", func(ctx context.Context) error {
		return e.sink.SubmitMetrics(ctx, ev.Metrics)
	})
	if err == nil {
		err = e.retry(ctx, "submit log", func(ctx context.Context) error {
			return e.sink.SubmitLog(ctx, ev.Log)
		})
	}

	if err != nil {
		e.failed.Add(1)
		if e.metrics != nil {
			e.metrics.RecordCounter(ports.MetricTelemetryFailures, 1, nil)
		}
		log.With("error", err.Error()).Warn("telemetry delivery failed, discarding event")
		return
	}

	e.delivered.Add(1)
	if e.metrics != nil {
		e.metrics.RecordCounter(ports.MetricTelemetryDelivered, 1, nil)
	}
	log.Debug("telemetry delivered")
}

// retry calls fn until it succeeds, MaxRetries retries have been spent or
// ctx is done. Backoff doubles from BaseDelay, is capped at MaxDelay and
// carries up to MaxJitter of random delay.
func (e *Emitter) retry(ctx context.Context, operation string, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		err := fn(attemptCtx)
		cancel()
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return fmt.Errorf("%s interrupted after %d attempts: %w", operation, attempt+1, err)
		case attempt == e.cfg.MaxRetries:
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt+1, err)
		}

		delay := min(e.cfg.BaseDelay<<attempt, e.cfg.MaxDelay) + jitter(e.cfg.MaxJitter)
		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", e.cfg.MaxRetries).
			With("backoff", delay).
			With("error", err.Error()).
			Debug("telemetry sink call failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s interrupted after %d attempts: %w", operation, attempt+1, err)
		case <-time.After(delay):
		}
	}
}

func jitter(maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(maxJitter)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// Close stops accepting events and waits for the workers to drain the
// queue. If ctx expires first the workers are canceled, in-flight retries
// are abandoned and ctx.Err() is returned. Events that never reach the sink
// are counted as failed, so Submitted always equals
// Delivered+Dropped+Failed once Close returns.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.closing)
	g, cancel := e.group, e.cancel
	e.mu.Unlock()

	if g == nil {
		e.abandonQueued(ctx, "emitter closed before start")
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		cancel()
		return err
	case <-ctx.Done():
		cancel()
		<-done
		e.abandonQueued(ctx, "emitter closed before draining")
		return ctx.Err()
	}
}

// abandonQueued empties the queue once no worker will take from it and
// counts every discarded event as failed.
func (e *Emitter) abandonQueued(ctx context.Context, reason string) {
	e.mu.Lock()
	n := e.size
	clear(e.ring)
	e.head, e.size = 0, 0
	e.recordDepth(0)
	e.mu.Unlock()

	if n == 0 {
		return
	}
	e.failed.Add(int64(n))
	if e.metrics != nil {
		e.metrics.RecordCounter(ports.MetricTelemetryFailures, float64(n), nil)
	}
	clog.FromContext(ctx).With("pending", n).With("reason", reason).Warn("telemetry events discarded")
}

// Stats returns a snapshot of the counters.
func (e *Emitter) Stats() Stats {
	e.mu.Lock()
	depth, inflight := e.size, e.inflight
	e.mu.Unlock()
	return Stats{
		Submitted: e.submitted.Load(),
		Delivered: e.delivered.Load(),
		Dropped:   e.dropped.Load(),
		Failed:    e.failed.Load(),
		Depth:     depth,
		InFlight:  inflight,
	}
}

// Depth returns the number of queued events.
func (e *Emitter) Depth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.size
}

func (e *Emitter) recordDrop(ctx context.Context, requestID, reason string) {
	e.dropped.Add(1)
	if e.metrics != nil {
		e.metrics.RecordCounter(ports.MetricTelemetryDropped, 1, nil)
	}
	clog.FromContext(ctx).With("request_id", requestID).With("reason", reason).
		Warn("telemetry event dropped")
}

// recordDepth is called with mu held so the gauge follows queue order.
func (e *Emitter) recordDepth(depth int) {
	if e.metrics != nil {
		e.metrics.RecordGauge(ports.MetricTelemetryQueueDepth, float64(depth), nil)
	}
}
