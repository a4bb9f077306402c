// Package engine provides the text extraction engines the orchestrator
// escalates through: the embedded text layer, baseline OCR, and
// vision-model transcription. Engines share one interface so the
// orchestrator never cares which one produced a candidate.
package engine

import (
	"context"
	"strings"

	"github.com/civic-archive/fppc-cli/internal/model"
)

// Result is one engine's raw output for a document.
type Result struct {
	Text      string
	PageCount int
	CostUSD   float64
}

// Engine extracts text from a PDF file.
type Engine interface {
	// Method identifies the engine in extraction attempts.
	Method() model.Method
	// Attempt extracts text from the document at pdfPath.
	Attempt(ctx context.Context, pdfPath string) (*Result, error)
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
