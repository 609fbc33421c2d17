package signals

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultHedging(t *testing.T) *HedgingDetector {
	t.Helper()
	d, err := NewHedgingDetector(HedgingConfig{})
	require.NoError(t, err)
	return d
}

// filler returns n neutral words.
func filler(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return strings.Join(words, " ")
}

func TestHedgingDetector_EmptyResponseScoresZero(t *testing.T) {
	d := newDefaultHedging(t)

	assert.Equal(t, 0.0, d.Score(""))
	assert.Equal(t, 0.0, d.Score("   \n\t"))
	assert.Equal(t, 0.0, d.Score("?!..."))
}

func TestHedgingDetector_NoMarkersScoresZero(t *testing.T) {
	d := newDefaultHedging(t)
	assert.Equal(t, 0.0, d.Score("Paris is the capital of France."))
}

func TestHedgingDetector_OnlyMarkersSaturates(t *testing.T) {
	d := newDefaultHedging(t)

	for _, text := range []string{
		"might possibly perhaps maybe probably",
		"Maybe. Perhaps. Possibly.",
		"I think, I believe, it seems",
	} {
		score := d.Score(text)
		assert.LessOrEqual(t, score, 1.0, text)
		assert.InDelta(t, 1.0, score, 0.01, text)
	}
}

func TestHedgingDetector_FewHedgesInShortAnswerDoNotSaturate(t *testing.T) {
	d := newDefaultHedging(t)

	text := "It might rain and it could be cold. " + filler(52)
	markers, words := d.Count(text)
	require.Equal(t, 2, markers)
	require.Equal(t, 60, words)

	score := d.Score(text)
	assert.InDelta(t, 0.2835, score, 0.001)
	assert.Less(t, score, 0.5)
}

func TestHedgingDetector_Count(t *testing.T) {
	d := newDefaultHedging(t)

	tests := []struct {
		name        string
		text        string
		wantMarkers int
		wantWords   int
	}{
		{"multi-word marker counted once", "I think it works", 1, 4},
		{"longest marker wins", "It is possible that the answer is wrong", 1, 8},
		{"typographic apostrophe", "It’s possible that we are late", 1, 6},
		{"case folded", "PERHAPS the MIGHT of Rome", 2, 5},
		{"word boundaries respected", "The mayor likes mighty maybes", 0, 5},
		{"punctuation separated", "Possibly,possibly;possibly", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markers, words := d.Count(tt.text)
			assert.Equal(t, tt.wantMarkers, markers, "markers")
			assert.Equal(t, tt.wantWords, words, "words")
		})
	}
}

func TestHedgingDetector_MonotonicInHedgeCount(t *testing.T) {
	d := newDefaultHedging(t)

	prev := -1.0
	for hedges := 0; hedges <= 20; hedges++ {
		text := strings.Repeat("maybe ", hedges) + filler(40-hedges)
		score := d.Score(text)
		assert.GreaterOrEqual(t, score, prev, "hedges=%d", hedges)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}
}

func TestHedgingDetector_FuzzyTolerance(t *testing.T) {
	strict := newDefaultHedging(t)
	fuzzy, err := NewHedgingDetector(HedgingConfig{FuzzyTolerance: 1})
	require.NoError(t, err)

	text := "It is probaly fine"
	m, _ := strict.Count(text)
	assert.Equal(t, 0, m, "exact matching must not accept misspellings")
	m, _ = fuzzy.Count(text)
	assert.Equal(t, 1, m, "distance one from 'probably'")

	m, _ = fuzzy.Count("the way it was")
	assert.Equal(t, 0, m, "short markers like 'may' are never fuzzy matched")
}

func TestHedgingDetector_CustomLexicon(t *testing.T) {
	d, err := NewHedgingDetector(HedgingConfig{Markers: []string{"kinda", "sort of"}})
	require.NoError(t, err)

	m, w := d.Count("It is kinda sort of maybe right")
	assert.Equal(t, 2, m, "default markers are replaced, not extended")
	assert.Equal(t, 7, w)
}

func TestNewHedgingDetector_InvalidConfig(t *testing.T) {
	_, err := NewHedgingDetector(HedgingConfig{FuzzyTolerance: 5})
	assert.Error(t, err)

	_, err = NewHedgingDetector(HedgingConfig{Scale: 2})
	assert.Error(t, err)

	_, err = NewHedgingDetector(HedgingConfig{Markers: []string{"!!!"}})
	assert.ErrorContains(t, err, "has no words")
}

func TestHedgingDetector_ConcurrentUse(t *testing.T) {
	d := newDefaultHedging(t)
	done := make(chan float64, 16)
	for range 16 {
		go func() { done <- d.Score("I think it might work") }()
	}
	first := <-done
	for range 15 {
		assert.Equal(t, first, <-done)
	}
}
