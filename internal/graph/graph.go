// Package graph builds the corpus-wide reverse citation index. Prior
// decision citations are resolved against every identifier variant a
// known document could appear under; targets that resolve nowhere are
// recorded in a known-gaps ledger instead of being dropped silently.
package graph

import (
	"sort"
	"strings"

	"github.com/civic-archive/fppc-cli/internal/citations"
)

// maxGapExamples caps how many citing documents a gap entry names.
const maxGapExamples = 10

// Node is one document's contribution to the graph: its identifier and
// the prior decisions it cites, already self-filtered at extraction.
type Node struct {
	ID             string
	PriorDecisions []string
}

// Gap is a citation target that no corpus document matches.
type Gap struct {
	ID                string   `json:"id"`
	CitedByCount      int      `json:"cited_by_count"`
	ExampleCitingDocs []string `json:"example_citing_docs"`
}

// Stats summarizes a build for logging and the stats command.
type Stats struct {
	Documents  int
	TotalEdges int
	Resolved   int
	Dangling   int
	UniqueGaps int
}

// Result holds the reverse index keyed by canonical document ID, the
// gap ledger sorted by citation count, and the build tallies. Resolved
// plus Dangling always equals TotalEdges.
type Result struct {
	CitedBy map[string][]string
	Gaps    []Gap
	Stats   Stats
}

// Build computes the reverse citation index over the whole corpus.
// Rebuilding from the same nodes yields the same result, so the graph
// pass can rerun after any extraction batch.
func Build(nodes []Node) Result {
	lookup := buildIDLookup(nodes)

	citedBy := map[string]map[string]struct{}{}
	dangling := map[string]map[string]struct{}{}
	stats := Stats{Documents: len(nodes)}

	for _, n := range nodes {
		for _, cited := range n.PriorDecisions {
			canonical, known := lookup[strings.ToUpper(strings.TrimSpace(cited))]
			if known && canonical == n.ID {
				// Residual self-reference that slipped past the
				// extraction filter; not an edge.
				continue
			}
			stats.TotalEdges++
			if known {
				addEdge(citedBy, canonical, n.ID)
				stats.Resolved++
			} else {
				addEdge(dangling, cited, n.ID)
				stats.Dangling++
			}
		}
	}
	stats.UniqueGaps = len(dangling)

	res := Result{CitedBy: make(map[string][]string, len(citedBy)), Stats: stats}
	for target, citers := range citedBy {
		res.CitedBy[target] = sortedSet(citers)
	}
	res.Gaps = buildGaps(dangling)
	return res
}

// buildIDLookup maps every identifier variant to the canonical ID as
// stored. A variant claimed by two documents keeps its first claimant,
// but a canonical ID always beats another document's variant of it.
func buildIDLookup(nodes []Node) map[string]string {
	lookup := map[string]string{}
	for _, n := range nodes {
		lookup[strings.ToUpper(n.ID)] = n.ID
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for v := range citations.SelfIDVariants(id) {
			if _, taken := lookup[v]; !taken {
				lookup[v] = id
			}
		}
	}
	return lookup
}

func addEdge(m map[string]map[string]struct{}, target, citer string) {
	set, ok := m[target]
	if !ok {
		set = map[string]struct{}{}
		m[target] = set
	}
	set[citer] = struct{}{}
}

func buildGaps(dangling map[string]map[string]struct{}) []Gap {
	gaps := make([]Gap, 0, len(dangling))
	for target, citers := range dangling {
		examples := sortedSet(citers)
		if len(examples) > maxGapExamples {
			examples = examples[:maxGapExamples]
		}
		gaps = append(gaps, Gap{
			ID:                target,
			CitedByCount:      len(citers),
			ExampleCitingDocs: examples,
		})
	}
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].CitedByCount != gaps[j].CitedByCount {
			return gaps[i].CitedByCount > gaps[j].CitedByCount
		}
		return gaps[i].ID < gaps[j].ID
	})
	return gaps
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
