// Package citations extracts statute, regulation, prior-decision, and
// court-case references from letter text, and owns the identifier
// normalization rules that keep a document's own identifier out of its
// citation list.
package citations

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/civic-archive/fppc-cli/internal/model"
)

// Political Reform Act statute range, slightly widened to catch edge
// sections; anything outside is a surface-pattern false positive.
const (
	statuteRangeLow  = 81000
	statuteRangeHigh = 92000

	regulationRangeLow  = 18000
	regulationRangeHigh = 19000
)

// Statute citation patterns, capture group 1 holds the section number
// with optional subsection.
var statutePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Government\s+Code\s+Sections?\s+(\d{5}(?:\s*\([a-z]\))?(?:\s*\(\d+\))?)`),
	regexp.MustCompile(`(?i)Gov(?:\.|ernment)\s+Code,?\s*§+\s*(\d{5}(?:\s*\([a-z]\))?(?:\s*\(\d+\))?)`),
	regexp.MustCompile(`(?i)Sections?\s+(\d{5}(?:\s*\([a-z]\))?(?:\s*\(\d+\))?)`),
	regexp.MustCompile(`(?i)§+\s*(\d{5}(?:\s*\([a-z]\))?(?:\s*\(\d+\))?)`),
}

// Regulation patterns (Title 2, California Code of Regulations).
var regulationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Regulations?\s+(\d{5}(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)2\s+Cal\.?\s+Code\s+(?:of\s+)?Regs?\.?\s*§?\s*(\d{5}(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)FPPC\s+Regulations?\s+(\d{5}(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)tit\.?\s*2,?\s*§?\s*(\d{5}(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)Title\s+2,?\s+Sections?\s+(\d{5}(?:\.\d+)?)`),
}

// Prior advice letter and opinion identifiers across eras.
var priorDecisionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b([AIM]-\d{2}-\d{3})\b`),
	regexp.MustCompile(`(?i)No\.?\s*([AIM]-\d{2}-\d{3})`),
	regexp.MustCompile(`(?i)Advice\s+Letter\s+(?:No\.?\s*)?(\d{5})`),
	regexp.MustCompile(`(?i)In\s+re\s+\w+,?\s+([AIM]-\d{2}-\d{3})`),
	regexp.MustCompile(`(?i)Opinion\s+(?:No\.?\s*)?(\d{2}-\d{3})`),
	regexp.MustCompile(`(?i)(?:Our\s+)?File\s+No\.?\s*([AIM]-\d{2}-\d{3})`),
}

// Court cases and formal opinions, matched whole.
var externalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+\s+Cal\.?\s*(?:App\.?\s*)?(?:2d|3d|4th|5th)?\s+\d+`),
	regexp.MustCompile(`(?i)\d+\s+Cal\.?\s*(?:2d|3d|4th|5th)\s+\d+`),
	regexp.MustCompile(`(?i)\d+\s+U\.S\.\s+\d+`),
	regexp.MustCompile(`(?i)\d+\s+F\.(?:2d|3d)\s+\d+`),
	regexp.MustCompile(`(?i)\d+\s+F\.\s*Supp\.?(?:\s*2d)?\s+\d+`),
	regexp.MustCompile(`(?i)In\s+re\s+\w+\s*\(\d{4}\)\s*\d+\s+FPPC\s+Ops\.?\s+\d+`),
	regexp.MustCompile(`(?i)\d+\s+Cal\.?\s*Rptr\.?(?:\s*2d|3d)?\s+\d+`),
}

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reOpenParen  = regexp.MustCompile(`\s+\(`)
	reCloseParen = regexp.MustCompile(`\)\s+`)
	reLeadingNum = regexp.MustCompile(`^\d+`)
)

// Extract pulls all citation categories out of document text. All
// lists are validated against their numeric ranges, deduplicated, and
// sorted; empty categories come back as empty slices, never nil checks
// for the caller.
func Extract(text string) *model.CitationSet {
	cs := &model.CitationSet{
		Statutes:       []string{},
		Regulations:    []string{},
		PriorDecisions: []string{},
		External:       []string{},
	}
	if strings.TrimSpace(text) == "" {
		return cs
	}

	cs.Statutes = collectGroups(text, statutePatterns, func(s string) (string, bool) {
		s = normalizeCitation(s)
		return s, inRange(s, statuteRangeLow, statuteRangeHigh)
	})
	cs.Regulations = collectGroups(text, regulationPatterns, func(s string) (string, bool) {
		s = normalizeCitation(s)
		return s, inRange(s, regulationRangeLow, regulationRangeHigh)
	})
	cs.PriorDecisions = collectGroups(text, priorDecisionPatterns, func(s string) (string, bool) {
		return NormalizeDecisionID(s), true
	})

	external := map[string]struct{}{}
	for _, re := range externalPatterns {
		for _, m := range re.FindAllString(text, -1) {
			external[normalizeCitation(m)] = struct{}{}
		}
	}
	cs.External = sortedKeys(external)

	return cs
}

func collectGroups(text string, patterns []*regexp.Regexp, norm func(string) (string, bool)) []string {
	set := map[string]struct{}{}
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if v, ok := norm(m[1]); ok {
				set[v] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// normalizeCitation standardizes whitespace and subsection spacing:
// "87103 (a)" becomes "87103(a)".
func normalizeCitation(s string) string {
	s = reWhitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	s = reOpenParen.ReplaceAllString(s, "(")
	s = reCloseParen.ReplaceAllString(s, ")")
	return s
}

func inRange(section string, low, high int) bool {
	m := reLeadingNum.FindString(section)
	if m == "" {
		return false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return false
	}
	return n >= low && n <= high
}

var (
	reStdID     = regexp.MustCompile(`^[AIM]-\d{2}-\d{3}$`)
	reCompactID = regexp.MustCompile(`^\d{5}$`)
	reBareID    = regexp.MustCompile(`^\d{2}-\d{3}$`)
)

// NormalizeDecisionID converts identifier variants to the standard
// "X-YY-NNN" form where possible. Unprefixed forms are assumed to be
// advice letters.
func NormalizeDecisionID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))

	switch {
	case reStdID.MatchString(id):
		return id
	case reCompactID.MatchString(id):
		return "A-" + id[:2] + "-" + id[2:]
	case reBareID.MatchString(id):
		return "A-" + id
	}
	return id
}
