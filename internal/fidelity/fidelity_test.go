package fidelity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civic-archive/fppc-cli/internal/config"
	"github.com/civic-archive/fppc-cli/internal/model"
)

func testVerifier() *Verifier {
	return NewVerifier(config.FidelityConfig{
		CriticalBelow: 0.30,
		HighBelow:     0.50,
		MediumBelow:   0.70,
		MaxWords:      20000,
	})
}

func TestVerifyBothEmpty(t *testing.T) {
	a := testVerifier().Verify("", "")
	assert.InDelta(t, 1.0, a.CanaryScore, 0.001)
	assert.Equal(t, model.TierLow, a.RiskTier)
}

func TestVerifyOneEmpty(t *testing.T) {
	v := testVerifier()

	a := v.Verify("the commission concluded the official may not vote", "")
	assert.InDelta(t, 0.0, a.CanaryScore, 0.001)
	assert.Equal(t, model.TierCritical, a.RiskTier)

	a = v.Verify("", "the commission concluded the official may not vote")
	assert.InDelta(t, 0.0, a.CanaryScore, 0.001)
	assert.Equal(t, model.TierCritical, a.RiskTier)
}

func TestVerifyIdenticalText(t *testing.T) {
	text := "The Commission concluded that the official may not vote on the contract."
	a := testVerifier().Verify(text, text)
	assert.InDelta(t, 1.0, a.CanaryScore, 0.001)
	assert.Equal(t, model.TierLow, a.RiskTier)
	assert.Equal(t, model.FidelityBaselineCompared, a.Method)
}

func TestVerifyFormattingDifferencesIgnored(t *testing.T) {
	vision := "QUESTION:\n\nMay the official vote?\n"
	baseline := "question may the official vote"
	a := testVerifier().Verify(vision, baseline)
	assert.InDelta(t, 1.0, a.CanaryScore, 0.001)
}

// words produces n distinct tokens with the given prefix.
func words(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
	}
	return out
}

func TestVerifyTierBoundaries(t *testing.T) {
	v := testVerifier()

	// shared k words in order out of n on each side: score = 2k/(2n).
	mk := func(shared, total int) (string, string) {
		common := words("same", shared)
		a := append(append([]string{}, common...), words("left", total-shared)...)
		b := append(append([]string{}, common...), words("right", total-shared)...)
		return strings.Join(a, " "), strings.Join(b, " ")
	}

	tests := []struct {
		name   string
		shared int
		total  int
		score  float64
		tier   model.RiskTier
	}{
		{"near perfect", 19, 20, 0.95, model.TierLow},
		{"boundary low", 14, 20, 0.70, model.TierLow},
		{"medium", 12, 20, 0.60, model.TierMedium},
		{"boundary medium", 10, 20, 0.50, model.TierMedium},
		{"high", 9, 20, 0.45, model.TierHigh},
		{"boundary high", 6, 20, 0.30, model.TierHigh},
		{"critical", 2, 20, 0.10, model.TierCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av, bv := mk(tt.shared, tt.total)
			a := v.Verify(av, bv)
			assert.InDelta(t, tt.score, a.CanaryScore, 0.001)
			assert.Equal(t, tt.tier, a.RiskTier)
		})
	}
}

func TestVerifyDescriptionModeIsCritical(t *testing.T) {
	baseline := "dear counsel the commission has reviewed your request for advice"
	vision := "The image shows a scanned letter. " + baseline

	a := testVerifier().Verify(vision, vision)
	assert.True(t, a.DescriptionMode)
	assert.Equal(t, model.TierCritical, a.RiskTier, "description mode overrides the score")
	assert.Greater(t, a.CanaryScore, 0.9)
}

func TestDetectDescriptionMode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"image shows", "The image shows a letter dated June 1, 1989.", true},
		{"appears to be scanned", "This appears to be a scanned document from 1975.", true},
		{"document contains", "The document contains three pages of text.", true},
		{"content of the image", "The content of the image is partially legible.", true},
		{"honest transcription", "Dear Mr. Smith: This letter responds to your request.", false},
		{"marker beyond window", strings.Repeat("word ", 150) + "The image shows a seal.", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDescriptionMode(tt.text))
		})
	}
}

func TestNormalize(t *testing.T) {
	in := "The  Commission's\nFile No. A-90-753:\t(approved)"
	assert.Equal(t, "the commission s file no a 90 753 approved", Normalize(in))
	assert.Equal(t, "", Normalize("!!! ... ---"))
}

func TestSimilarityPenalizesReordering(t *testing.T) {
	score := similarityRatio(
		[]string{"one", "two", "three", "four"},
		[]string{"four", "three", "two", "one"},
		0,
	)
	// Same word set, reversed order: alignment keeps only one word.
	assert.InDelta(t, 0.25, score, 0.001)
}

func TestSimilarityTruncation(t *testing.T) {
	a := words("x", 100)
	b := append(append([]string{}, a[:50]...), words("y", 50)...)
	full := similarityRatio(a, b, 0)
	capped := similarityRatio(a, b, 50)
	assert.InDelta(t, 0.5, full, 0.001)
	assert.InDelta(t, 1.0, capped, 0.001)
}

func TestNativeTrusted(t *testing.T) {
	a := NativeTrusted()
	assert.Equal(t, model.TierVerified, a.RiskTier)
	assert.Equal(t, model.FidelityNativeTrusted, a.Method)
	assert.InDelta(t, 1.0, a.CanaryScore, 0.001)
}

func TestReplaced(t *testing.T) {
	text := "the commission concluded the official may not vote"
	a := testVerifier().Replaced(text, text)
	assert.Equal(t, model.FidelityReplaced, a.Method)
	assert.Equal(t, model.TierLow, a.RiskTier)
}
