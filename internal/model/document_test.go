package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodCostOrdering(t *testing.T) {
	assert.Less(t, MethodTextLayer.Cost(), MethodBaselineOCR.Cost())
	assert.Less(t, MethodBaselineOCR.Cost(), MethodVision.Cost())
	assert.Equal(t, MethodVision.Cost(), MethodTextLayerVision.Cost())
}

func TestRiskTierNeedsRemediation(t *testing.T) {
	assert.False(t, TierVerified.NeedsRemediation())
	assert.False(t, TierLow.NeedsRemediation())
	assert.True(t, TierMedium.NeedsRemediation())
	assert.True(t, TierHigh.NeedsRemediation())
	assert.True(t, TierCritical.NeedsRemediation())
}

func TestDocumentProcessed(t *testing.T) {
	d := &Document{Status: StatusPending}
	assert.False(t, d.Processed())

	d.Status = StatusProcessed
	assert.False(t, d.Processed(), "processed status without a record is not processed")

	d.Extraction = &ExtractionRecord{Method: MethodTextLayer}
	assert.True(t, d.Processed())

	d.Status = StatusExtractionFailed
	assert.False(t, d.Processed())
}

func TestCitationSetTotal(t *testing.T) {
	c := &CitationSet{
		Statutes:       []string{"87100", "87103"},
		Regulations:    []string{"18700"},
		PriorDecisions: []string{"A-90-123"},
		CitedBy:        []string{"A-95-001"},
	}
	assert.Equal(t, 4, c.Total(), "cited_by is derived and not counted")
}

func TestSectionResultGet(t *testing.T) {
	r := &SectionResult{
		Question: &Section{Content: "May the official vote?"},
		Facts:    &Section{Content: "The official is a council member."},
	}
	assert.Equal(t, "May the official vote?", r.Get(SectionQuestion).Content)
	assert.Nil(t, r.Get(SectionConclusion))
	assert.NotNil(t, r.Get(SectionFacts))
	assert.Nil(t, r.Get(SectionAnalysis))
}
