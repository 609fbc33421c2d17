package signals

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultVerbosity(t *testing.T) *VerbosityAnalyzer {
	t.Helper()
	a, err := NewVerbosityAnalyzer(VerbosityConfig{})
	require.NoError(t, err)
	return a
}

func TestVerbosityAnalyzer_EqualLengthIsLowEnd(t *testing.T) {
	a := newDefaultVerbosity(t)

	v := a.Analyze("one two three", "four five six")
	assert.Equal(t, 1.0, v.Ratio)
	assert.Equal(t, 0.0, v.Score)

	v = a.Analyze("a much longer prompt than the answer", "short")
	assert.Equal(t, 0.0, v.Score, "ratios below one score zero")
}

func TestVerbosityAnalyzer_SaturatesFarAboveExpected(t *testing.T) {
	a := newDefaultVerbosity(t)

	v := a.Analyze("one", filler(int(5*DefaultExpectedMultiplier)))
	assert.Equal(t, 15.0, v.Ratio)
	assert.GreaterOrEqual(t, v.Score, 0.99)
	assert.LessOrEqual(t, v.Score, 1.0)

	v = a.Analyze("one", filler(500))
	assert.InDelta(t, 1.0, v.Score, 1e-9)
}

func TestVerbosityAnalyzer_EmptyPromptUsesFloor(t *testing.T) {
	a := newDefaultVerbosity(t)

	v := a.Analyze("", filler(4))
	assert.Equal(t, 4.0, v.Ratio)
	assert.InDelta(t, 1-math.Exp(-1), v.Score, 1e-12)

	v = a.Analyze("", "")
	assert.Equal(t, 0.0, v.Ratio)
	assert.Equal(t, 0.0, v.Score)
}

func TestVerbosityAnalyzer_Scenario(t *testing.T) {
	a := newDefaultVerbosity(t)

	v := a.Analyze("What is AI?", filler(60))
	assert.Equal(t, 20.0, v.Ratio)
	assert.InDelta(t, 0.998, v.Score, 0.001)
}

func TestVerbosityAnalyzer_Monotonic(t *testing.T) {
	a := newDefaultVerbosity(t)

	err := quick.Check(func(x, y float64) bool {
		r1, r2 := math.Abs(math.Mod(x, 100)), math.Abs(math.Mod(y, 100))
		if math.IsNaN(r1) || math.IsNaN(r2) {
			return true
		}
		if r1 > r2 {
			r1, r2 = r2, r1
		}
		s1, s2 := a.Normalize(r1), a.Normalize(r2)
		return s1 <= s2 && s1 >= 0 && s2 <= 1
	}, &quick.Config{MaxCount: 2000})
	assert.NoError(t, err, "normalization must be monotone and bounded")
}

func TestVerbosityAnalyzer_CustomMultiplier(t *testing.T) {
	tight, err := NewVerbosityAnalyzer(VerbosityConfig{ExpectedMultiplier: 1.5})
	require.NoError(t, err)
	loose := newDefaultVerbosity(t)

	assert.Greater(t, tight.Normalize(3), loose.Normalize(3))

	_, err = NewVerbosityAnalyzer(VerbosityConfig{ExpectedMultiplier: -1})
	assert.Error(t, err)
}
