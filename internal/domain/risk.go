package domain

import "fmt"

// Composite risk weights. They reflect the relative evidentiary weight of
// each signal and are intentionally not configurable.
const (
	ConfidenceWeight = 0.4
	HedgingWeight    = 0.3
	VerbosityWeight  = 0.3
)

// Default tier boundaries.
const (
	DefaultLowThreshold  = 0.5
	DefaultHighThreshold = 0.7
)

// RiskTier is the low/moderate/high classification of a composite score.
type RiskTier string

// Supported risk tiers.
const (
	TierLow      RiskTier = "low"
	TierModerate RiskTier = "moderate"
	TierHigh     RiskTier = "high"
)

// String returns the tier name.
func (t RiskTier) String() string { return string(t) }

// RiskThresholds partitions the composite score into tiers. It is set once
// at process start and passed by value to the components that need it.
type RiskThresholds struct {
	// Low is the smallest score classified as moderate.
	Low float64 `yaml:"low" validate:"gte=0,lte=1"`
	// High is the largest score classified as moderate; anything above is high.
	High float64 `yaml:"high" validate:"gte=0,lte=1,gtefield=Low"`
}

// DefaultRiskThresholds returns the 0.5/0.7 boundaries.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{Low: DefaultLowThreshold, High: DefaultHighThreshold}
}

// Validate reports whether the thresholds describe a usable partition of [0,1].
func (t RiskThresholds) Validate() error {
	if t.Low < 0 || t.High > 1 || t.Low > t.High {
		return fmt.Errorf("%w: risk thresholds must satisfy 0 <= low <= high <= 1 (low=%v high=%v)",
			ErrInvalidConfiguration, t.Low, t.High)
	}
	return nil
}

// Tier classifies score. Scores below Low are low, scores above High are
// high, and both boundaries themselves are moderate.
func (t RiskThresholds) Tier(score float64) RiskTier {
	switch {
	case score < t.Low:
		return TierLow
	case score > t.High:
		return TierHigh
	default:
		return TierModerate
	}
}

// Signals are the three subscores the composite is built from.
type Signals struct {
	Confidence float64
	Hedging    float64
	Verbosity  float64
}

// Score combines the signals into the composite hallucination-risk score:
//
//	0.4*(1-confidence) + 0.3*hedging + 0.3*verbosity
//
// Each input is clamped first and the sum is clamped again, so a contract
// violation upstream cannot push the result outside [0,1].
func Score(s Signals) float64 {
	c := Clamp01(s.Confidence)
	h := Clamp01(s.Hedging)
	v := Clamp01(s.Verbosity)
	return Clamp01(ConfidenceWeight*(1-c) + HedgingWeight*h + VerbosityWeight*v)
}
