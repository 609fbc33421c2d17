package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-vigil/internal/ports"
)

// ErrCircuitOpen is returned without calling the provider while the circuit
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState is the state of a CircuitBreaker.
type CircuitBreakerState int

const (
	// StateClosed passes all requests through.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets one probe request through.
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures and probes
// for recovery once cooldown has elapsed.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitBreakerState
	failureCount int
	maxFailures  int
	cooldown     time.Duration
	lastFailure  time.Time
	now          func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: max(maxFailures, 1),
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Call runs fn unless the circuit is open. A context error that follows the
// caller's own cancellation or deadline does not count as a provider
// failure; a deadline set inside fn (a per-attempt timeout) still does.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err, ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)))
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.cooldown {
			return false
		}
		cb.state = StateHalfOpen
		return true
	case StateHalfOpen:
		// A probe is already in flight.
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) record(err error, callerDone bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err == nil:
		cb.failureCount = 0
		cb.state = StateClosed
	case callerDone:
		if cb.state == StateHalfOpen {
			cb.state = StateOpen
		}
	default:
		cb.failureCount++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerLLM struct {
	next      CoreLLM
	cb        *CircuitBreaker
	collector ports.MetricsCollector
}

// CircuitBreakerMiddleware fails fast with ErrCircuitOpen after maxFailures
// consecutive provider failures, for cooldown. When collector is non-nil the
// state is exported as llm_circuit_state and rejections as
// llm_circuit_rejections_total.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration, collector ports.MetricsCollector) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{next: next, cb: cb, collector: collector}
	}
}

// DoRequest implements CoreLLM.
func (c *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var response string
	var tokensIn, tokensOut int
	err := c.cb.Call(ctx, func() error {
		var err error
		response, tokensIn, tokensOut, err = c.next.DoRequest(ctx, prompt, opts)
		return err
	})

	if c.collector != nil {
		labels := map[string]string{"model": c.next.GetModel()}
		if errors.Is(err, ErrCircuitOpen) {
			c.collector.RecordCounter(ports.MetricCircuitRejections, 1, labels)
		}
		c.collector.RecordGauge(ports.MetricCircuitState, float64(c.cb.State()), labels)
	}

	return response, tokensIn, tokensOut, err
}

func (c *circuitBreakerLLM) GetModel() string  { return c.next.GetModel() }
func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }
