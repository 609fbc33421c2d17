// Package signals derives the quality-risk subscores of a completed model
// exchange: the model's self-reported confidence, the frequency of hedging
// language and the response verbosity relative to the prompt.
package signals

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/go-vigil/internal/ports"
)

// NeutralConfidence is substituted whenever a confidence value cannot be
// obtained or is out of range.
const NeutralConfidence = 0.5

// ErrConfidenceOutOfRange is returned by the rater path when the model
// produced a number outside [0,1].
var ErrConfidenceOutOfRange = errors.New("confidence out of range")

// Confidence is the elicited self-confidence of the model.
type Confidence struct {
	// Value is in [0,1]; NeutralConfidence when Unavailable is set.
	Value float64
	// Unavailable marks a neutral-default substitution.
	Unavailable bool
}

// unavailable is the fail-soft result every strategy falls back to.
func unavailable() Confidence { return Confidence{Value: NeutralConfidence, Unavailable: true} }

// ConfidenceElicitor produces a confidence value for a completed exchange.
// Implementations never fail: they return an Unavailable neutral value
// instead.
type ConfidenceElicitor interface {
	Elicit(ctx context.Context, prompt, response string) Confidence
}

var (
	// inlineRatingPattern finds a self-rating that closes the response, e.g.
	// "Confidence: 0.8", "confidence level = 85%", "[confidence 0.9]". The
	// label must open a sentence or a bracket and nothing may follow the
	// rating, so prose that merely mentions confidence does not match.
	inlineRatingPattern = regexp.MustCompile(
		`(?i)(?:(?:^|[.!?\n])\s*[\[(]?|\s[\[(])\s*confidence(?:\s+(?:level|score|rating))?\s*[:=]?\s*(\d+(?:\.\d+)?|\.\d+)\s*(%?)\s*[\])]?\s*\.?\s*$`)

	// bareNumberPattern finds the first number in a rater reply.
	bareNumberPattern = regexp.MustCompile(`(\d+(?:\.\d+)?|\.\d+)\s*(%?)`)
)

// ParseInlineConfidence extracts a self-rating labelled "confidence" from
// the end of text. Percentages are scaled to [0,1]. The boolean is false when no
// rating is present or the rating is out of range.
func ParseInlineConfidence(text string) (float64, bool) {
	return parseRating(inlineRatingPattern, text)
}

// ParseConfidence extracts the first number in text, as returned by a model
// asked to reply with only a number. Percentages are scaled to [0,1].
func ParseConfidence(text string) (float64, bool) {
	return parseRating(bareNumberPattern, text)
}

func parseRating(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] == "%" {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, false
	}
	return v, true
}

// InlineElicitor reads a self-rating the model was asked to emit alongside
// its answer. It makes no model calls.
type InlineElicitor struct{}

var _ ConfidenceElicitor = InlineElicitor{}

// Elicit implements ConfidenceElicitor.
func (InlineElicitor) Elicit(ctx context.Context, _, response string) Confidence {
	v, ok := ParseInlineConfidence(response)
	if !ok {
		clog.FromContext(ctx).Debug("no inline confidence rating found")
		return unavailable()
	}
	return Confidence{Value: v}
}

// QueryElicitor asks the model, through a ConfidenceRater, to rate its own
// prior answer. The secondary call is bounded by timeout, which should be
// the same budget as the primary model request.
type QueryElicitor struct {
	rater   ports.ConfidenceRater
	timeout time.Duration
}

var _ ConfidenceElicitor = (*QueryElicitor)(nil)

// NewQueryElicitor creates a QueryElicitor. A zero timeout means the
// secondary call is bounded only by the caller's context.
func NewQueryElicitor(rater ports.ConfidenceRater, timeout time.Duration) (*QueryElicitor, error) {
	if rater == nil {
		return nil, fmt.Errorf("confidence rater cannot be nil")
	}
	if timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %v", timeout)
	}
	return &QueryElicitor{rater: rater, timeout: timeout}, nil
}

// Elicit implements ConfidenceElicitor. Rater errors, timeouts and
// out-of-range values all yield the neutral default.
func (q *QueryElicitor) Elicit(ctx context.Context, prompt, response string) Confidence {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	v, err := q.rater.RateConfidence(ctx, prompt, response)
	if err == nil && (v < 0 || v > 1 || v != v) {
		err = fmt.Errorf("%w: %v", ErrConfidenceOutOfRange, v)
	}
	if err != nil {
		clog.FromContext(ctx).With("error", err.Error()).
			Warn("confidence elicitation failed, using neutral default")
		return unavailable()
	}
	return Confidence{Value: v}
}

// ChainElicitor tries each elicitor in order and returns the first
// available value.
type ChainElicitor []ConfidenceElicitor

var _ ConfidenceElicitor = ChainElicitor(nil)

// Elicit implements ConfidenceElicitor.
func (c ChainElicitor) Elicit(ctx context.Context, prompt, response string) Confidence {
	for _, e := range c {
		if ctx.Err() != nil {
			break
		}
		if conf := e.Elicit(ctx, prompt, response); !conf.Unavailable {
			return conf
		}
	}
	return unavailable()
}

// StaticElicitor reports a caller-supplied rating, for offline scoring
// where the confidence was obtained out of band. Out-of-range values
// yield the neutral default.
type StaticElicitor float64

var _ ConfidenceElicitor = StaticElicitor(0)

// Elicit implements ConfidenceElicitor.
func (s StaticElicitor) Elicit(context.Context, string, string) Confidence {
	v := float64(s)
	if v < 0 || v > 1 || v != v {
		return unavailable()
	}
	return Confidence{Value: v}
}
