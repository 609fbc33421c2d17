package domain

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unit maps an arbitrary float into [0,1] so quick.Check explores the
// whole domain of valid subscores.
func unit(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0.5
	}
	return math.Abs(math.Mod(x, 1.0))
}

func TestScore_MatchesWeightedFormula(t *testing.T) {
	err := quick.Check(func(a, b, c float64) bool {
		conf, hedge, verb := unit(a), unit(b), unit(c)
		got := Score(Signals{Confidence: conf, Hedging: hedge, Verbosity: verb})
		want := 0.4*(1-conf) + 0.3*hedge + 0.3*verb
		return math.Abs(got-want) < 1e-12 && got >= 0 && got <= 1
	}, &quick.Config{MaxCount: 5000})
	assert.NoError(t, err, "composite must equal the weighted sum and stay in [0,1]")
}

func TestScore_ClampsOutOfContractInputs(t *testing.T) {
	tests := []struct {
		name    string
		signals Signals
		want    float64
	}{
		{"all worst case", Signals{Confidence: 0, Hedging: 1, Verbosity: 1}, 1.0},
		{"all best case", Signals{Confidence: 1, Hedging: 0, Verbosity: 0}, 0.0},
		{"negative confidence clamps to zero", Signals{Confidence: -3, Hedging: 0, Verbosity: 0}, 0.4},
		{"hedging above one clamps", Signals{Confidence: 1, Hedging: 7, Verbosity: 0}, 0.3},
		{"nan verbosity treated as zero", Signals{Confidence: 1, Hedging: 0, Verbosity: math.NaN()}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.signals), 1e-12)
		})
	}
}

func TestScore_WeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, ConfidenceWeight+HedgingWeight+VerbosityWeight, 1e-12)
}

func TestRiskThresholds_Tier(t *testing.T) {
	th := DefaultRiskThresholds()

	tests := []struct {
		score float64
		want  RiskTier
	}{
		{0.0, TierLow},
		{0.49, TierLow},
		{0.5, TierModerate},
		{0.6, TierModerate},
		{0.7, TierModerate},
		{0.71, TierHigh},
		{1.0, TierHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Tier(tt.score), "score %v", tt.score)
	}
}

func TestRiskThresholds_TierIsPureFunctionOfThresholds(t *testing.T) {
	strict := RiskThresholds{Low: 0.2, High: 0.3}
	lenient := RiskThresholds{Low: 0.8, High: 0.9}

	assert.Equal(t, TierHigh, strict.Tier(0.5))
	assert.Equal(t, TierLow, lenient.Tier(0.5))
	assert.Equal(t, TierModerate, DefaultRiskThresholds().Tier(0.5))
}

func TestRiskThresholds_Validate(t *testing.T) {
	require.NoError(t, DefaultRiskThresholds().Validate())
	require.NoError(t, RiskThresholds{Low: 0.6, High: 0.6}.Validate())

	for _, bad := range []RiskThresholds{
		{Low: 0.8, High: 0.7},
		{Low: -0.1, High: 0.5},
		{Low: 0.5, High: 1.2},
	} {
		err := bad.Validate()
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "thresholds %+v", bad)
	}
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.25, Clamp01(0.25))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 0, WordCount("   \n\t "))
	assert.Equal(t, 3, WordCount("What is AI?"))
	assert.Equal(t, 4, WordCount("  spaced   out\nacross lines "))
}
