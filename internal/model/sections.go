package model

// SectionType names the structural parts of an advice letter.
type SectionType string

const (
	SectionQuestion   SectionType = "question"
	SectionConclusion SectionType = "conclusion"
	SectionFacts      SectionType = "facts"
	SectionAnalysis   SectionType = "analysis"
)

// Section is one extracted span. Synthetic sections come from the LLM
// fallback generator rather than a header pattern match.
type Section struct {
	Content    string  `json:"content"`
	Synthetic  bool    `json:"synthetic,omitempty"`
	Confidence float64 `json:"confidence"`
}

// SectionResult holds everything the section parser derives from one
// document's trusted text.
type SectionResult struct {
	Question   *Section `json:"question,omitempty"`
	Conclusion *Section `json:"conclusion,omitempty"`
	Facts      *Section `json:"facts,omitempty"`
	Analysis   *Section `json:"analysis,omitempty"`

	// Synthetic fallbacks never overwrite pattern-matched content.
	QuestionSynthetic   *Section `json:"question_synthetic,omitempty"`
	ConclusionSynthetic *Section `json:"conclusion_synthetic,omitempty"`
	Summary             string   `json:"summary,omitempty"`

	Confidence        float64  `json:"extraction_confidence"`
	Method            string   `json:"extraction_method"`
	HasStandardFormat bool     `json:"has_standard_format"`
	Issues            []string `json:"issues,omitempty"`
	Notes             string   `json:"parsing_notes,omitempty"`
}

// Get returns the pattern-matched section of the given type, nil when
// absent.
func (r *SectionResult) Get(t SectionType) *Section {
	switch t {
	case SectionQuestion:
		return r.Question
	case SectionConclusion:
		return r.Conclusion
	case SectionFacts:
		return r.Facts
	case SectionAnalysis:
		return r.Analysis
	}
	return nil
}
