// Package store persists per-document pipeline records and the
// corpus-wide citation graph artifacts. The full document is stored as
// a single JSON record; a handful of columns are denormalized copies
// kept only for filtering and aggregation.
package store

import (
	"context"

	"github.com/civic-archive/fppc-cli/internal/graph"
	"github.com/civic-archive/fppc-cli/internal/model"
)

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	Status   model.DocumentStatus `json:"status,omitempty"`
	Year     int                  `json:"year,omitempty"`
	RiskTier model.RiskTier       `json:"risk_tier,omitempty"`
	Topic    model.TopicLabel     `json:"topic,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
	Offset   int                  `json:"offset,omitempty"`
}

// Summary aggregates corpus-level tallies for the stats command.
type Summary struct {
	Documents    int            `json:"documents"`
	AvgQuality   float64        `json:"avg_quality"`
	TotalCostUSD float64        `json:"total_cost_usd"`
	ByStatus     map[string]int `json:"by_status"`
	ByMethod     map[string]int `json:"by_method"`
	ByRiskTier   map[string]int `json:"by_risk_tier"`
	ByTopic      map[string]int `json:"by_topic"`
	KnownGaps    int            `json:"known_gaps"`
}

// Store defines the persistence interface for the extraction pipeline.
// GetDocument and GetDocumentBySourcePath return (nil, nil) for an
// unknown ID or path so resume logic can distinguish "never processed"
// from a storage failure.
type Store interface {
	// Documents
	UpsertDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	GetDocumentBySourcePath(ctx context.Context, path string) (*model.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)

	// Citation graph
	GraphNodes(ctx context.Context) ([]graph.Node, error)
	UpdateCitedBy(ctx context.Context, id string, citedBy []string) error
	ReplaceKnownGaps(ctx context.Context, gaps []graph.Gap) error
	ListKnownGaps(ctx context.Context) ([]graph.Gap, error)

	// Stats
	Summarize(ctx context.Context) (*Summary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// indexedColumns flattens the nested record fields the store filters
// on. The JSON record stays the source of truth; these are copies.
type indexedColumns struct {
	Method   string
	RiskTier string
	Topic    string
	Quality  float64
	CostUSD  float64
}

func indexColumns(doc *model.Document) indexedColumns {
	cols := indexedColumns{Method: string(model.MethodNone)}
	if doc.Extraction != nil {
		cols.Method = string(doc.Extraction.Method)
		cols.Quality = doc.Extraction.QualityScore
	}
	if doc.Fidelity != nil {
		cols.RiskTier = string(doc.Fidelity.RiskTier)
	}
	if doc.Classification != nil && doc.Classification.Topic != nil {
		cols.Topic = string(*doc.Classification.Topic)
	}
	for _, a := range doc.Attempts {
		cols.CostUSD += a.CostUSD
	}
	return cols
}
