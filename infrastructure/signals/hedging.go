package signals

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-vigil/internal/domain"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// foldString performs Unicode case folding for marker matching. A
// cases.Caser is stateful, so each call builds its own.
func foldString(s string) string { return cases.Fold().String(s) }

// DefaultHedgingMarkers is the built-in lexicon of uncertainty cues.
var DefaultHedgingMarkers = []string{
	"might", "may", "possibly", "perhaps", "maybe", "probably", "likely",
	"seemingly", "apparently", "presumably", "arguably",
	"i think", "i believe", "i guess", "i suppose",
	"could be", "it seems", "it appears",
	"it's possible that", "it is possible that",
	"not sure", "not certain", "to my knowledge", "as far as i know",
}

// DefaultHedgingScale is the marker density at which the score reaches
// 1-1/e. A density of one hedge every ten words scores about 0.63.
const DefaultHedgingScale = 0.1

// fuzzyMinRunes is the shortest single-word marker eligible for fuzzy
// matching. Short words like "may" are too close to unrelated words.
const fuzzyMinRunes = 6

// HedgingConfig controls the hedging detector.
type HedgingConfig struct {
	// Markers overrides the lexicon. Empty means DefaultHedgingMarkers.
	Markers []string `yaml:"markers" validate:"dive,min=1,max=64"`
	// Scale is the density at which the saturation curve reaches 1-1/e.
	// Zero means DefaultHedgingScale.
	Scale float64 `yaml:"scale" validate:"gte=0,lte=1"`
	// FuzzyTolerance is the Levenshtein distance allowed between a word
	// and a single-word marker of at least six letters. Zero disables it.
	FuzzyTolerance int `yaml:"fuzzy_tolerance" validate:"gte=0,lte=2"`
}

// HedgingDetector scores response text by how often it hedges. It is a
// pure function of the text and safe for concurrent use.
type HedgingDetector struct {
	markers   [][]string // tokenized, longest first
	scale     float64
	tolerance int
}

// NewHedgingDetector builds a detector from config.
func NewHedgingDetector(config HedgingConfig) (*HedgingDetector, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("hedging configuration validation failed: %w", err)
	}

	lexicon := config.Markers
	if len(lexicon) == 0 {
		lexicon = DefaultHedgingMarkers
	}

	markers := make([][]string, 0, len(lexicon))
	for _, m := range lexicon {
		toks := tokenize(m)
		if len(toks) == 0 {
			return nil, fmt.Errorf("hedging marker %q has no words", m)
		}
		markers = append(markers, toks)
	}
	// Longest markers first so "it is possible that" wins over any
	// marker that is a prefix of it.
	slices.SortStableFunc(markers, func(a, b []string) int { return len(b) - len(a) })

	scale := config.Scale
	if scale == 0 {
		scale = DefaultHedgingScale
	}

	return &HedgingDetector{markers: markers, scale: scale, tolerance: config.FuzzyTolerance}, nil
}

// Count returns the number of non-overlapping hedging markers in text and
// the number of words considered.
func (d *HedgingDetector) Count(text string) (markers, words int) {
	toks := tokenize(text)
	for i := 0; i < len(toks); {
		if n := d.matchAt(toks, i); n > 0 {
			markers++
			i += n
			continue
		}
		i++
	}
	return markers, len(toks)
}

// Score returns the hedging score of text in [0,1]. The marker density is
// passed through 1-exp(-density/scale), so two hedges in a sixty-word
// answer score about 0.28 while text made only of hedges approaches 1.
// Empty text scores exactly 0.
func (d *HedgingDetector) Score(text string) float64 {
	markers, words := d.Count(text)
	if words == 0 || markers == 0 {
		return 0
	}
	density := float64(markers) / float64(words)
	return domain.Clamp01(1 - math.Exp(-density/d.scale))
}

// matchAt returns the token length of the marker matching at toks[i], or 0.
func (d *HedgingDetector) matchAt(toks []string, i int) int {
	for _, m := range d.markers {
		if i+len(m) > len(toks) {
			continue
		}
		if slices.Equal(toks[i:i+len(m)], m) {
			return len(m)
		}
		if d.tolerance > 0 && len(m) == 1 && d.fuzzyEqual(toks[i], m[0]) {
			return 1
		}
	}
	return 0
}

func (d *HedgingDetector) fuzzyEqual(word, marker string) bool {
	if utf8.RuneCountInString(marker) < fuzzyMinRunes {
		return false
	}
	return levenshtein.ComputeDistance(word, marker) <= d.tolerance
}

// tokenize folds case, normalizes typographic apostrophes and splits on
// anything that is not a letter, digit or apostrophe.
func tokenize(s string) []string {
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(foldString(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			out = append(out, f)
		}
	}
	return out
}
