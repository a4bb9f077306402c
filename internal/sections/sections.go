// Package sections extracts QUESTION, CONCLUSION, FACTS, and ANALYSIS
// spans from trusted letter text. The pattern table is deliberately
// over-inclusive to tolerate OCR corruption; post-match validation
// rejects the false positives the tolerance lets in.
package sections

import (
	"fmt"
	"sort"
	"strings"

	"github.com/civic-archive/fppc-cli/internal/config"
	"github.com/civic-archive/fppc-cli/internal/model"
)

// Parser extracts structured sections from document text. Safe for
// concurrent use.
type Parser struct {
	cfg config.SectionsConfig
}

// NewParser builds a Parser.
func NewParser(cfg config.SectionsConfig) *Parser {
	return &Parser{cfg: cfg}
}

type headerMatch struct {
	typ   model.SectionType
	start int // where the header begins
	end   int // where content begins, after the header
	era   string
}

// Parse extracts sections from text. Year feeds the era adjustment of
// the confidence model; pass 0 when unknown.
func (p *Parser) Parse(text string, year int) *model.SectionResult {
	if strings.TrimSpace(text) == "" {
		return &model.SectionResult{
			Method: "none",
			Notes:  "empty or whitespace-only input",
		}
	}

	// Boilerplate is stripped from the whole document before boundary
	// detection. Removing it per section after the fact can merge two
	// adjacent sections when a footnote spans the boundary.
	text = StripBoilerplate(text)

	matches := findHeaderMatches(text)
	if len(matches) == 0 {
		return &model.SectionResult{
			Method: "none",
			Notes:  "no section headers found",
		}
	}

	extracted, issues := p.extract(text, matches)
	if len(extracted) == 0 {
		return &model.SectionResult{
			Method: "none",
			Issues: issues,
			Notes:  buildNotes(extracted, matches, issues),
		}
	}

	confidence := computeConfidence(extracted, issues, year)
	method := "regex_validated"
	if len(issues) > 0 {
		method = "regex"
	}

	_, hasQ := extracted[model.SectionQuestion]
	_, hasC := extracted[model.SectionConclusion]

	result := &model.SectionResult{
		Confidence:        confidence,
		Method:            method,
		HasStandardFormat: hasQ || hasC,
		Issues:            issues,
		Notes:             buildNotes(extracted, matches, issues),
	}
	for typ, content := range extracted {
		sec := &model.Section{Content: content, Confidence: confidence}
		switch typ {
		case model.SectionQuestion:
			result.Question = sec
		case model.SectionConclusion:
			result.Conclusion = sec
		case model.SectionFacts:
			result.Facts = sec
		case model.SectionAnalysis:
			result.Analysis = sec
		}
	}
	return result
}

// NeedsSynthesis reports whether the parse outcome is weak enough to
// route the document to the synthetic-section fallback.
func (p *Parser) NeedsSynthesis(r *model.SectionResult) bool {
	if r == nil {
		return true
	}
	return r.Confidence < p.cfg.SynthesizeBelow || !r.HasStandardFormat
}

// findHeaderMatches returns the first match of each section type,
// sorted by position.
func findHeaderMatches(text string) []headerMatch {
	var matches []headerMatch
	seen := map[model.SectionType]bool{}

	for _, hp := range headerPatterns {
		if seen[hp.typ] {
			continue
		}
		if loc := hp.re.FindStringIndex(text); loc != nil {
			matches = append(matches, headerMatch{
				typ:   hp.typ,
				start: loc[0],
				end:   loc[1],
				era:   hp.era,
			})
			seen[hp.typ] = true
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	return matches
}

// findDocumentEnd locates the earliest end-of-content marker at or
// after the given offset. Markers before the offset are ignored:
// a "Sincerely," in a letter quoted inside the facts section must not
// truncate later sections.
func findDocumentEnd(text string, after int) int {
	end := -1
	for _, re := range documentEndPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[0] >= after {
				if end == -1 || loc[0] < end {
					end = loc[0]
				}
				break
			}
		}
	}
	return end
}

func (p *Parser) extract(text string, matches []headerMatch) (map[model.SectionType]string, []string) {
	extracted := map[model.SectionType]string{}
	var issues []string

	// Ordering check: a conclusion beginning before the question is a
	// signal of a false match, degrading confidence but not discarding
	// content.
	qPos, cPos := -1, -1
	for _, m := range matches {
		switch m.typ {
		case model.SectionQuestion:
			qPos = m.start
		case model.SectionConclusion:
			cPos = m.start
		}
	}
	if qPos >= 0 && cPos >= 0 && cPos < qPos {
		issues = append(issues, "CONCLUSION appears before QUESTION")
	}

	for i, m := range matches {
		docEnd := findDocumentEnd(text, m.end)
		end := len(text)
		if i+1 < len(matches) && matches[i+1].start < end {
			end = matches[i+1].start
		}
		if docEnd >= 0 && docEnd > m.end && docEnd < end {
			end = docEnd
		}

		content := cleanContent(text[m.end:end])
		words := len(strings.Fields(content))
		if words < p.cfg.MinSectionWords {
			issues = append(issues, fmt.Sprintf("%s has only %d words", strings.ToUpper(string(m.typ)), words))
			continue
		}
		extracted[m.typ] = content
	}

	return extracted, issues
}

// StripBoilerplate removes known recurring non-content spans: PRA
// footnotes in all their OCR variants, file-number page headers,
// address blocks, and page references.
func StripBoilerplate(text string) string {
	for _, re := range boilerplatePatterns {
		text = re.ReplaceAllString(text, "")
	}
	return text
}

// cleanContent normalizes one extracted span: page-break artifacts,
// line endings, blank-line runs, surrounding whitespace.
func cleanContent(content string) string {
	if content == "" {
		return ""
	}
	content = strings.ReplaceAll(content, "\f", "\n")
	content = rePageNumber.ReplaceAllString(content, "\n")
	content = rePageOfPage.ReplaceAllString(content, "\n")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = reBlankRuns.ReplaceAllString(content, "\n\n\n")
	return strings.TrimSpace(content)
}

// computeConfidence derives confidence from which sections were found
// and the source era's known reliability. It is never set directly.
func computeConfidence(extracted map[model.SectionType]string, issues []string, year int) float64 {
	_, hasQ := extracted[model.SectionQuestion]
	_, hasC := extracted[model.SectionConclusion]
	_, hasF := extracted[model.SectionFacts]
	_, hasA := extracted[model.SectionAnalysis]

	var base float64
	switch {
	case hasQ && hasC:
		base = 0.9
	case hasQ || hasC:
		base = 0.6
	case hasF || hasA:
		base = 0.4
	}

	if hasQ && hasC && hasF && hasA {
		base = min(base+0.05, 1.0)
	}

	if year > 0 {
		switch {
		case year >= 2010:
			base = min(base+0.05, 1.0)
		case year >= 2000:
			// reliable era, no adjustment
		case year >= 1985:
			base = max(base-0.05, 0.0)
		default:
			base = max(base-0.15, 0.0)
		}
	}

	base -= 0.1 * float64(len(issues))
	return max(0.0, min(1.0, base))
}

func buildNotes(extracted map[model.SectionType]string, matches []headerMatch, issues []string) string {
	var notes []string

	if len(matches) > 0 {
		eras := map[string]bool{}
		for _, m := range matches {
			eras[m.era] = true
		}
		if len(eras) == 1 {
			notes = append(notes, "format: "+matches[0].era)
		} else {
			keys := make([]string, 0, len(eras))
			for e := range eras {
				keys = append(keys, e)
			}
			sort.Strings(keys)
			notes = append(notes, "mixed formats: "+strings.Join(keys, ", "))
		}
	}

	var skipped []string
	for _, m := range matches {
		if _, ok := extracted[m.typ]; !ok {
			skipped = append(skipped, string(m.typ))
		}
	}
	if len(skipped) > 0 {
		sort.Strings(skipped)
		notes = append(notes, "skipped (too short): "+strings.Join(skipped, ", "))
	}

	notes = append(notes, issues...)
	return strings.Join(notes, "; ")
}
