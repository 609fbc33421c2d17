package signals

import (
	"fmt"
	"math"

	"github.com/ahrav/go-vigil/internal/domain"
)

// DefaultExpectedMultiplier is the response/prompt word ratio considered
// normal for a chat answer.
const DefaultExpectedMultiplier = 3.0

// VerbosityConfig controls the verbosity analyzer.
type VerbosityConfig struct {
	// ExpectedMultiplier sets how quickly the score saturates. Zero means
	// DefaultExpectedMultiplier.
	ExpectedMultiplier float64 `yaml:"expected_multiplier" validate:"gte=0,lte=1000"`
}

// Verbosity is the analyzer output.
type Verbosity struct {
	// Ratio is response words divided by prompt words (prompt floored at 1).
	Ratio float64
	// Score is Ratio normalized into [0,1].
	Score float64
}

// VerbosityAnalyzer compares response length with prompt length.
type VerbosityAnalyzer struct {
	expected float64
}

// NewVerbosityAnalyzer builds an analyzer from config.
func NewVerbosityAnalyzer(config VerbosityConfig) (*VerbosityAnalyzer, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("verbosity configuration validation failed: %w", err)
	}
	expected := config.ExpectedMultiplier
	if expected == 0 {
		expected = DefaultExpectedMultiplier
	}
	return &VerbosityAnalyzer{expected: expected}, nil
}

// Analyze measures both texts in words. A ratio at or below 1 scores 0;
// above it the score follows 1-exp(-(ratio-1)/expected), which is about
// 0.49 at the expected multiplier and above 0.99 at five times it. An
// empty prompt counts as one word.
func (a *VerbosityAnalyzer) Analyze(prompt, response string) Verbosity {
	promptWords := max(domain.WordCount(prompt), 1)
	ratio := float64(domain.WordCount(response)) / float64(promptWords)
	return Verbosity{Ratio: ratio, Score: a.Normalize(ratio)}
}

// Normalize maps a raw ratio into [0,1]. It is monotonically
// non-decreasing in ratio.
func (a *VerbosityAnalyzer) Normalize(ratio float64) float64 {
	if ratio <= 1 || ratio != ratio {
		return 0
	}
	return domain.Clamp01(1 - math.Exp(-(ratio-1)/a.expected))
}
