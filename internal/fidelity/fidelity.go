// Package fidelity cross-checks vision-transcribed text against an
// independent baseline OCR pass to detect fabrication. The baseline is
// low fidelity but honest; fluent output that diverges heavily from it
// is presumptively fabricated even when it reads better. The resulting
// risk tier is deliberately orthogonal to the quality score: a high
// quality score with a low-fidelity tier is the dangerous case the
// pipeline must surface.
package fidelity

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/civic-archive/fppc-cli/internal/config"
	"github.com/civic-archive/fppc-cli/internal/model"
)

// Description-mode markers: the vision engine describing the image
// instead of transcribing it. Checked in the first 500 characters,
// since honest transcriptions of letters never open this way.
var descriptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)The image (?:is|shows|contains|appears|displays|presents)`),
	regexp.MustCompile(`(?i)This (?:is a|appears to be a) scanned`),
	regexp.MustCompile(`(?i)The document (?:is|appears|shows|contains)`),
	regexp.MustCompile(`(?i)(?:scanned|photographed) (?:image|copy|document) of`),
	regexp.MustCompile(`(?i)The (?:text|content) (?:of the|in the) (?:image|document)`),
	regexp.MustCompile(`(?i)This image (?:is|shows|contains)`),
}

var (
	rePunct      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Verifier assigns fidelity assessments. Safe for concurrent use.
type Verifier struct {
	cfg config.FidelityConfig
}

// NewVerifier builds a Verifier with the given tier boundaries.
func NewVerifier(cfg config.FidelityConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify scores a vision attempt against a baseline attempt and
// assigns a risk tier. Neither input is mutated.
func (v *Verifier) Verify(visionText, baselineText string) model.FidelityAssessment {
	visionWords := tokenize(visionText)
	baselineWords := tokenize(baselineText)

	score := similarityRatio(visionWords, baselineWords, v.cfg.MaxWords)
	descMode := DetectDescriptionMode(visionText)

	var tier model.RiskTier
	switch {
	case descMode, score < v.cfg.CriticalBelow:
		tier = model.TierCritical
	case score < v.cfg.HighBelow:
		tier = model.TierHigh
	case score < v.cfg.MediumBelow:
		tier = model.TierMedium
	default:
		tier = model.TierLow
	}

	return model.FidelityAssessment{
		CanaryScore:     score,
		RiskTier:        tier,
		Method:          model.FidelityBaselineCompared,
		DescriptionMode: descMode,
		VisionWords:     len(visionWords),
		BaselineWords:   len(baselineWords),
	}
}

// NativeTrusted returns the assessment for deterministic engines, which
// are trusted by construction and never compared against a baseline.
func NativeTrusted() model.FidelityAssessment {
	return model.FidelityAssessment{
		CanaryScore: 1.0,
		RiskTier:    model.TierVerified,
		Method:      model.FidelityNativeTrusted,
	}
}

// Replaced returns the assessment for text rewritten by the strict
// remediation pass, re-scored against the same baseline.
func (v *Verifier) Replaced(remediatedText, baselineText string) model.FidelityAssessment {
	a := v.Verify(remediatedText, baselineText)
	a.Method = model.FidelityReplaced
	return a
}

// DetectDescriptionMode reports whether text opens with meta-commentary
// about the image rather than transcribed content.
func DetectDescriptionMode(text string) bool {
	head := text
	if len(head) > 500 {
		head = head[:500]
	}
	for _, re := range descriptionPatterns {
		if re.MatchString(head) {
			return true
		}
	}
	return false
}

// Normalize prepares text for engine-to-engine comparison: both engines
// format differently but should agree on the actual words.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	text = rePunct.ReplaceAllString(text, " ")
	text = reWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func tokenize(text string) []string {
	n := Normalize(text)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// similarityRatio computes 2*LCS/(lenA+lenB) over word sequences.
// Sequence alignment penalizes reordering without making minor
// substitutions catastrophic, unlike naive set overlap. Inputs are
// truncated to maxWords to bound the quadratic alignment.
func similarityRatio(a, b []string, maxWords int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if maxWords > 0 {
		if len(a) > maxWords {
			a = a[:maxWords]
		}
		if len(b) > maxWords {
			b = b[:maxWords]
		}
	}

	// Rolling-row LCS.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(b)]

	return 2.0 * float64(lcs) / float64(len(a)+len(b))
}
