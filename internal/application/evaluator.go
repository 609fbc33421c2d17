package application

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-vigil/infrastructure/signals"
	"github.com/ahrav/go-vigil/internal/domain"
	"github.com/ahrav/go-vigil/internal/ports"
)

const tracerName = "github.com/ahrav/go-vigil/internal/application"

// Evaluator runs the quality-risk pipeline over one completed exchange:
// confidence elicitation, hedging and verbosity analysis run concurrently,
// then the composite score, tier and correlation hash are derived. It holds
// no per-request state and is safe for concurrent use.
type Evaluator struct {
	elicitor   signals.ConfidenceElicitor
	hedging    *signals.HedgingDetector
	verbosity  *signals.VerbosityAnalyzer
	thresholds domain.RiskThresholds
	metrics    ports.MetricsCollector
	tracer     trace.Tracer
	now        func() time.Time
}

// NewEvaluator builds an evaluator from cfg. A nil elicitor reads inline
// ratings only; metrics may be nil.
func NewEvaluator(cfg EvaluationConfig, elicitor signals.ConfidenceElicitor, metrics ports.MetricsCollector) (*Evaluator, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, validationError("evaluation config", err)
	}

	hedging, err := signals.NewHedgingDetector(cfg.Hedging)
	if err != nil {
		return nil, fmt.Errorf("failed to create hedging detector: %w", err)
	}
	verbosity, err := signals.NewVerbosityAnalyzer(cfg.Verbosity)
	if err != nil {
		return nil, fmt.Errorf("failed to create verbosity analyzer: %w", err)
	}
	if elicitor == nil {
		elicitor = signals.InlineElicitor{}
	}

	return &Evaluator{
		elicitor:   elicitor,
		hedging:    hedging,
		verbosity:  verbosity,
		thresholds: cfg.Thresholds,
		metrics:    metrics,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}, nil
}

// NewConfidenceElicitor builds the elicitor named by cfg.Strategy. An empty
// strategy means query, or inline when there is no rater. The query
// strategy needs a rater; the chain degrades to inline-only without one. The follow-up call is bounded by cfg.Timeout, or by modelTimeout
// when that is zero.
func NewConfidenceElicitor(cfg ConfidenceConfig, rater ports.ConfidenceRater, modelTimeout time.Duration) (signals.ConfidenceElicitor, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = modelTimeout
	}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = ConfidenceQuery
		if rater == nil {
			strategy = ConfidenceInline
		}
	}

	switch strategy {
	case ConfidenceInline:
		return signals.InlineElicitor{}, nil
	case ConfidenceQuery:
		return signals.NewQueryElicitor(rater, timeout)
	case ConfidenceChain:
		if rater == nil {
			return signals.InlineElicitor{}, nil
		}
		query, err := signals.NewQueryElicitor(rater, timeout)
		if err != nil {
			return nil, err
		}
		return signals.ChainElicitor{signals.InlineElicitor{}, query}, nil
	default:
		return nil, fmt.Errorf("%w: unknown confidence strategy %q", domain.ErrInvalidConfiguration, cfg.Strategy)
	}
}

// Evaluate scores in under a fresh request id.
func (e *Evaluator) Evaluate(ctx context.Context, in domain.EvaluationInput) (domain.EvaluationResult, error) {
	return e.EvaluateRequest(ctx, uuid.NewString(), in)
}

// EvaluateRequest scores in and returns the content-free result. If ctx is
// done before the result is complete it returns ErrEvaluationAbandoned and
// no partial result.
func (e *Evaluator) EvaluateRequest(ctx context.Context, requestID string, in domain.EvaluationInput) (domain.EvaluationResult, error) {
	ctx, span := e.tracer.Start(ctx, "evaluation.evaluate",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("llm.model", in.Model),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return e.abandon(span, err)
	}
	start := e.now()

	var (
		conf signals.Confidence
		hedg float64
		verb signals.Verbosity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		conf = e.elicitor.Elicit(gctx, in.Prompt, in.Response)
		return nil
	})
	g.Go(func() error {
		hedg = e.hedging.Score(in.Response)
		return nil
	})
	g.Go(func() error {
		verb = e.verbosity.Analyze(in.Prompt, in.Response)
		return nil
	})
	_ = g.Wait() // the analyzers cannot fail

	if err := ctx.Err(); err != nil {
		return e.abandon(span, err)
	}

	risk := domain.Score(domain.Signals{
		Confidence: conf.Value,
		Hedging:    hedg,
		Verbosity:  verb.Score,
	})
	tier := e.thresholds.Tier(risk)

	result := domain.EvaluationResult{
		RequestID:             requestID,
		Model:                 in.Model,
		SelfConfidence:        domain.Clamp01(conf.Value),
		ConfidenceUnavailable: conf.Unavailable,
		HedgingScore:          domain.Clamp01(hedg),
		VerbosityScore:        domain.Clamp01(verb.Score),
		VerbosityRatio:        verb.Ratio,
		RiskScore:             risk,
		Tier:                  tier,
		AnswerLength:          domain.WordCount(in.Response),
		PromptHash:            domain.CorrelationID(in.Prompt),
		LatencyMS:             float64(in.Latency) / float64(time.Millisecond),
		InputTokens:           in.InputTokens,
		OutputTokens:          in.OutputTokens,
		TotalTokens:           in.InputTokens + in.OutputTokens,
		Timestamp:             e.now(),
	}

	span.SetAttributes(
		attribute.Float64("evaluation.risk_score", risk),
		attribute.String("evaluation.tier", tier.String()),
		attribute.Bool("evaluation.confidence_unavailable", conf.Unavailable),
		attribute.String("prompt.hash", result.PromptHash),
	)
	e.record(result, e.now().Sub(start))

	clog.FromContext(ctx).With("request_id", requestID).
		With("prompt_hash", result.PromptHash).
		With("risk_score", risk).
		With("tier", tier.String()).
		Debug("evaluation complete")

	return result, nil
}

func (e *Evaluator) abandon(span trace.Span, cause error) (domain.EvaluationResult, error) {
	err := fmt.Errorf("%w: %w", domain.ErrEvaluationAbandoned, cause)
	span.RecordError(err)
	span.SetStatus(codes.Error, "abandoned")
	return domain.EvaluationResult{}, err
}

func (e *Evaluator) record(r domain.EvaluationResult, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordLatency(ports.MetricEvaluation, elapsed, nil)
	e.metrics.RecordCounter(ports.MetricEvaluations, 1, map[string]string{
		"tier":  r.Tier.String(),
		"model": r.Model,
	})
	if r.ConfidenceUnavailable {
		e.metrics.RecordCounter(ports.MetricConfidenceUnavailable, 1, nil)
	}
	for signal, v := range map[string]float64{
		"hallucination_risk": r.RiskScore,
		"self_confidence":    r.SelfConfidence,
		"hedging":            r.HedgingScore,
		"verbosity":          r.VerbosityScore,
	} {
		e.metrics.RecordHistogram(ports.MetricSignalScore, v, map[string]string{
			"signal": signal,
			"model":  r.Model,
		})
	}
}
