package model

// CitationSet holds the four disjoint forward-citation lists extracted
// from one document, plus the reverse list populated only by the
// corpus-wide graph pass.
type CitationSet struct {
	Statutes       []string `json:"statutes"`
	Regulations    []string `json:"regulations"`
	PriorDecisions []string `json:"prior_decisions"`
	External       []string `json:"external"`
	CitedBy        []string `json:"cited_by,omitempty"`
}

// Total counts forward citations (cited_by is derived, not extracted).
func (c *CitationSet) Total() int {
	return len(c.Statutes) + len(c.Regulations) + len(c.PriorDecisions) + len(c.External)
}

// TopicLabel is the heuristic classification target.
type TopicLabel string

const (
	TopicConflicts TopicLabel = "conflicts_of_interest"
	TopicCampaign  TopicLabel = "campaign_finance"
	TopicLobbying  TopicLabel = "lobbying"
	TopicOther     TopicLabel = "other"
)

// Classification is the citation-based topic verdict. Topic is nil when
// the document had no citations to classify at all, which downstream
// consumers must distinguish from an explicit "other".
type Classification struct {
	Topic      *TopicLabel `json:"topic"`
	Confidence float64     `json:"confidence"`
	Method     string      `json:"method"`
}
