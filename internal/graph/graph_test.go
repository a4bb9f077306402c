package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReciprocity(t *testing.T) {
	nodes := []Node{
		{ID: "A-82-060", PriorDecisions: nil},
		{ID: "A-90-753", PriorDecisions: []string{"A-82-060"}},
		{ID: "I-91-100", PriorDecisions: []string{"A-82-060", "A-90-753"}},
	}

	res := Build(nodes)

	assert.Equal(t, []string{"A-90-753", "I-91-100"}, res.CitedBy["A-82-060"])
	assert.Equal(t, []string{"I-91-100"}, res.CitedBy["A-90-753"])
	assert.Empty(t, res.CitedBy["I-91-100"])
	assert.Equal(t, 3, res.Stats.Resolved)
	assert.Empty(t, res.Gaps)
}

func TestBuildResolvesVariants(t *testing.T) {
	nodes := []Node{
		{ID: "A-82-060", PriorDecisions: nil},
		{ID: "A-90-001", PriorDecisions: []string{"82-060"}},
		{ID: "A-90-002", PriorDecisions: []string{"82060"}},
		{ID: "A-90-003", PriorDecisions: []string{"A82060"}},
	}

	res := Build(nodes)

	assert.Equal(t, []string{"A-90-001", "A-90-002", "A-90-003"}, res.CitedBy["A-82-060"])
	assert.Equal(t, 3, res.Stats.Resolved)
	assert.Equal(t, 0, res.Stats.Dangling)
}

func TestBuildRecordsGaps(t *testing.T) {
	nodes := []Node{
		{ID: "A-90-001", PriorDecisions: []string{"A-75-999", "A-76-888"}},
		{ID: "A-90-002", PriorDecisions: []string{"A-75-999"}},
	}

	res := Build(nodes)

	require.Len(t, res.Gaps, 2)
	assert.Equal(t, "A-75-999", res.Gaps[0].ID)
	assert.Equal(t, 2, res.Gaps[0].CitedByCount)
	assert.Equal(t, []string{"A-90-001", "A-90-002"}, res.Gaps[0].ExampleCitingDocs)
	assert.Equal(t, "A-76-888", res.Gaps[1].ID)
	assert.Equal(t, 1, res.Gaps[1].CitedByCount)
}

func TestBuildEdgeAccounting(t *testing.T) {
	nodes := []Node{
		{ID: "A-90-001", PriorDecisions: []string{"A-90-002", "A-75-999"}},
		{ID: "A-90-002", PriorDecisions: []string{"A-90-001"}},
	}

	res := Build(nodes)

	assert.Equal(t, res.Stats.TotalEdges, res.Stats.Resolved+res.Stats.Dangling)
	assert.Equal(t, 3, res.Stats.TotalEdges)
	assert.Equal(t, 2, res.Stats.Resolved)
	assert.Equal(t, 1, res.Stats.Dangling)
	assert.Equal(t, 1, res.Stats.UniqueGaps)
}

func TestBuildSkipsResidualSelfReference(t *testing.T) {
	nodes := []Node{
		{ID: "A-90-753", PriorDecisions: []string{"90753", "A-89-100"}},
	}

	res := Build(nodes)

	assert.Empty(t, res.CitedBy["A-90-753"])
	assert.Equal(t, 1, res.Stats.TotalEdges)
	assert.Equal(t, 1, res.Stats.Dangling)
}

func TestBuildDeduplicatesRepeatCitations(t *testing.T) {
	nodes := []Node{
		{ID: "A-82-060", PriorDecisions: nil},
		{ID: "A-90-001", PriorDecisions: []string{"A-82-060", "82-060", "82060"}},
	}

	res := Build(nodes)

	assert.Equal(t, []string{"A-90-001"}, res.CitedBy["A-82-060"])
	assert.Equal(t, 3, res.Stats.Resolved)
}

func TestBuildIdempotent(t *testing.T) {
	nodes := []Node{
		{ID: "A-82-060"},
		{ID: "A-90-753", PriorDecisions: []string{"A-82-060", "A-75-999"}},
	}

	first := Build(nodes)
	second := Build(nodes)

	assert.Equal(t, first, second)
}

func TestBuildCanonicalBeatsVariant(t *testing.T) {
	// "90-753" is both a stored document and a variant of A-90-753.
	// The stored document keeps its own identifier.
	nodes := []Node{
		{ID: "A-90-753"},
		{ID: "90-753"},
		{ID: "A-91-001", PriorDecisions: []string{"90-753"}},
	}

	res := Build(nodes)

	assert.Equal(t, []string{"A-91-001"}, res.CitedBy["90-753"])
	assert.Empty(t, res.CitedBy["A-90-753"])
}

func TestBuildGapExamplesCapped(t *testing.T) {
	nodes := make([]Node, 0, 12)
	for i := 0; i < 12; i++ {
		nodes = append(nodes, Node{
			ID:             syntheticID(i),
			PriorDecisions: []string{"A-75-999"},
		})
	}

	res := Build(nodes)

	require.Len(t, res.Gaps, 1)
	assert.Equal(t, 12, res.Gaps[0].CitedByCount)
	assert.Len(t, res.Gaps[0].ExampleCitingDocs, maxGapExamples)
}

func syntheticID(i int) string {
	return "UNK-99-" + string(rune('A'+i)) + "0000"
}
