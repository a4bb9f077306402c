package model

import "time"

// Method identifies which engine (or engine combination) produced text.
type Method string

const (
	MethodTextLayer   Method = "text_layer"
	MethodBaselineOCR Method = "baseline_ocr"
	MethodVision      Method = "vision"

	// MethodTextLayerVision marks a record whose winning text came from
	// the vision engine after a text-layer pass had already run.
	MethodTextLayerVision Method = "text_layer+vision"

	// MethodNone marks a failed extraction.
	MethodNone Method = "none"
)

// Cost ranks engines cheapest-first for tie-breaking between attempts
// with equal word count and quality.
func (m Method) Cost() int {
	switch m {
	case MethodTextLayer:
		return 0
	case MethodBaselineOCR:
		return 1
	case MethodVision, MethodTextLayerVision:
		return 2
	}
	return 3
}

// ExtractionAttempt is one engine invocation's output. Immutable once
// created; the orchestrator records every attempt, not just the winner.
type ExtractionAttempt struct {
	ID           string    `json:"id"`
	Method       Method    `json:"method"`
	Text         string    `json:"text"`
	WordCount    int       `json:"word_count"`
	QualityScore float64   `json:"quality_score"`
	CostUSD      float64   `json:"cost_usd,omitempty"`
	AttemptedAt  time.Time `json:"attempted_at"`
}

// ExtractionRecord is the current best extraction for a document.
type ExtractionRecord struct {
	Method       Method    `json:"method"`
	Text         string    `json:"text"`
	WordCount    int       `json:"word_count"`
	PageCount    int       `json:"page_count"`
	QualityScore float64   `json:"quality_score"`
	CostUSD      float64   `json:"cost_usd,omitempty"`
	ExtractedAt  time.Time `json:"extracted_at"`
}
