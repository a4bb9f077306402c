package model

// RiskTier is a discrete fabrication-risk classification for
// vision-transcribed text, independent of the quality score.
type RiskTier string

const (
	TierVerified RiskTier = "verified"
	TierLow      RiskTier = "low"
	TierMedium   RiskTier = "medium"
	TierHigh     RiskTier = "high"
	TierCritical RiskTier = "critical"
)

// NeedsRemediation reports whether the tier routes the document to the
// strict re-transcription pass before it can be marked verified.
func (t RiskTier) NeedsRemediation() bool {
	switch t {
	case TierMedium, TierHigh, TierCritical:
		return true
	}
	return false
}

// FidelityMethod records how an assessment was produced.
type FidelityMethod string

const (
	// FidelityNativeTrusted marks deterministic engines, trusted by
	// construction without a baseline comparison.
	FidelityNativeTrusted FidelityMethod = "native_trusted"

	// FidelityBaselineCompared marks a vision attempt scored against an
	// independent baseline OCR pass.
	FidelityBaselineCompared FidelityMethod = "baseline_compared"

	// FidelityReplaced marks text that was re-transcribed by the strict
	// remediation pass.
	FidelityReplaced FidelityMethod = "replaced"
)

// FidelityAssessment is the verifier's verdict on one vision attempt.
type FidelityAssessment struct {
	CanaryScore     float64        `json:"canary_score"`
	RiskTier        RiskTier       `json:"risk_tier"`
	Method          FidelityMethod `json:"method"`
	DescriptionMode bool           `json:"description_mode,omitempty"`
	VisionWords     int            `json:"vision_words"`
	BaselineWords   int            `json:"baseline_words"`
}
