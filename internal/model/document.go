package model

import "time"

// DocumentType classifies the kind of advice document.
type DocumentType string

const (
	DocTypeAdviceLetter   DocumentType = "advice_letter"
	DocTypeInformalAdvice DocumentType = "informal_advice"
	DocTypeOpinion        DocumentType = "opinion"
	DocTypeCorrespondence DocumentType = "correspondence"
	DocTypeOther          DocumentType = "other"
)

// DocumentStatus tracks where a document is in the pipeline.
type DocumentStatus string

const (
	StatusPending          DocumentStatus = "pending"
	StatusProcessed        DocumentStatus = "processed"
	StatusExtractionFailed DocumentStatus = "extraction_failed"
)

// Document is the per-letter record the pipeline reads and writes.
// Exactly one ExtractionRecord is current at a time; Attempts keeps
// the full audit trail of everything that was tried.
type Document struct {
	ID           string       `json:"id"`
	Year         int          `json:"year"`
	SourcePath   string       `json:"source_path"`
	DocumentType DocumentType `json:"document_type"`

	// In-body metadata, best effort.
	LetterDate     string `json:"letter_date,omitempty"`
	Requestor      string `json:"requestor,omitempty"`
	RequestorTitle string `json:"requestor_title,omitempty"`

	Extraction     *ExtractionRecord   `json:"extraction,omitempty"`
	Attempts       []ExtractionAttempt `json:"attempts,omitempty"`
	Fidelity       *FidelityAssessment `json:"fidelity,omitempty"`
	Sections       *SectionResult      `json:"sections,omitempty"`
	Citations      *CitationSet        `json:"citations,omitempty"`
	Classification *Classification     `json:"classification,omitempty"`

	Status      DocumentStatus `json:"status"`
	ProcessedAt time.Time      `json:"processed_at,omitempty"`
}

// Processed reports whether the document already holds a current
// extraction record, used by resume logic to skip completed work.
func (d *Document) Processed() bool {
	return d.Status == StatusProcessed && d.Extraction != nil
}
