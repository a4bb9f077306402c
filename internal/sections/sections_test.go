package sections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-archive/fppc-cli/internal/config"
	"github.com/civic-archive/fppc-cli/internal/model"
)

func testParser() *Parser {
	return NewParser(config.SectionsConfig{
		MinSectionWords: 1,
		SynthesizeBelow: 0.5,
	})
}

func TestParseStandardLetter(t *testing.T) {
	text := "QUESTION\nMay the official vote?\n\nCONCLUSION\nNo.\n\nFACTS\nThe official is a council member."
	r := testParser().Parse(text, 0)

	require.NotNil(t, r.Question)
	require.NotNil(t, r.Conclusion)
	require.NotNil(t, r.Facts)
	assert.Equal(t, "May the official vote?", r.Question.Content)
	assert.Equal(t, "No.", r.Conclusion.Content)
	assert.Equal(t, "The official is a council member.", r.Facts.Content)
	assert.True(t, r.HasStandardFormat)
	assert.GreaterOrEqual(t, r.Confidence, 0.8)
	assert.Equal(t, "regex_validated", r.Method)
	assert.Nil(t, r.Analysis)
}

func TestParseColonHeaders(t *testing.T) {
	text := "QUESTION: May a consultant file late?\n\nCONCLUSION: Yes, with penalties.\n"
	r := testParser().Parse(text, 2015)

	require.NotNil(t, r.Question)
	require.NotNil(t, r.Conclusion)
	assert.Equal(t, "May a consultant file late?", r.Question.Content)
	assert.Equal(t, "Yes, with penalties.", r.Conclusion.Content)
}

func TestParseEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   \n\t  "} {
		r := testParser().Parse(text, 2015)
		assert.Equal(t, "none", r.Method)
		assert.Nil(t, r.Question)
		assert.Zero(t, r.Confidence)
		assert.False(t, r.HasStandardFormat)
	}
}

func TestParseNoHeaders(t *testing.T) {
	r := testParser().Parse("Dear Mr. Smith, thank you for your letter about the upcoming election.", 2015)
	assert.Equal(t, "none", r.Method)
	assert.Contains(t, r.Notes, "no section headers")
}

func TestParseSignatureTruncatesLastSection(t *testing.T) {
	text := "ANALYSIS\nSection 87100 prohibits the vote.\n\nSincerely,\nJane Counsel\nGeneral Counsel\n"
	r := testParser().Parse(text, 2015)

	require.NotNil(t, r.Analysis)
	assert.Equal(t, "Section 87100 prohibits the vote.", r.Analysis.Content)
	assert.NotContains(t, r.Analysis.Content, "Jane")
}

func TestParseClosingBoilerplateTruncates(t *testing.T) {
	text := "CONCLUSION\nThe official may participate.\nIf you have any other questions regarding this matter, please contact our office.\n"
	r := testParser().Parse(text, 2015)

	require.NotNil(t, r.Conclusion)
	assert.Equal(t, "The official may participate.", r.Conclusion.Content)
}

func TestParseOrderingIssueDegradesConfidence(t *testing.T) {
	text := "CONCLUSION\nNo, the official may not vote.\n\nQUESTION\nMay the official vote on the lease?\n"
	r := testParser().Parse(text, 0)

	require.NotNil(t, r.Question)
	require.NotNil(t, r.Conclusion)
	assert.Contains(t, r.Issues, "CONCLUSION appears before QUESTION")
	assert.Equal(t, "regex", r.Method)
	assert.InDelta(t, 0.8, r.Confidence, 0.001)
	// Ordering violations are a signal, not proof: content is kept.
	assert.True(t, r.HasStandardFormat)
}

func TestParseFirstOccurrenceWins(t *testing.T) {
	text := "QUESTION\nFirst question text here.\n\nQUESTION\nRepeated header later.\n"
	r := testParser().Parse(text, 2015)

	require.NotNil(t, r.Question)
	assert.Contains(t, r.Question.Content, "First question text here.")
}

func TestParseOCRVariants(t *testing.T) {
	tests := []struct {
		name   string
		header string
		check  func(r *model.SectionResult) *model.Section
	}{
		{"O for Q", "OUESTION", func(r *model.SectionResult) *model.Section { return r.Question }},
		{"spaced question", "Q U E S T I O N", func(r *model.SectionResult) *model.Section { return r.Question }},
		{"QTJESTTON garble", "QT.JESTTON", func(r *model.SectionResult) *model.Section { return r.Question }},
		{"f for I", "CONCLUSfONS", func(r *model.SectionResult) *model.Section { return r.Conclusion }},
		{"ANALYSTS misread", "ANALYSTS", func(r *model.SectionResult) *model.Section { return r.Analysis }},
		{"AMALYSIS garble", "AMALYSIS", func(r *model.SectionResult) *model.Section { return r.Analysis }},
		{"r for F", "rACTS", func(r *model.SectionResult) *model.Section { return r.Facts }},
		{"apostrophe facts", "F'ACTS", func(r *model.SectionResult) *model.Section { return r.Facts }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.header + "\nSome section content follows here.\n"
			r := testParser().Parse(text, 1982)
			sec := tt.check(r)
			require.NotNil(t, sec, "header %q should match", tt.header)
			assert.Contains(t, sec.Content, "Some section content")
		})
	}
}

func TestParseRomanNumeralHeaders(t *testing.T) {
	text := "I. QUESTION\nMay the member vote?\n\nII. SHORT ANSWER\nNo.\n\nIII. FACTS\nThe member owns stock.\n\nIV. ANALYSIS\nSection 87100 applies to the member.\n"
	r := testParser().Parse(text, 1995)

	require.NotNil(t, r.Question)
	require.NotNil(t, r.Conclusion)
	require.NotNil(t, r.Facts)
	require.NotNil(t, r.Analysis)
	assert.Equal(t, "No.", r.Conclusion.Content)
}

func TestParseOldFormatVariants(t *testing.T) {
	text := "QUESTIONS PRESENTED\nWhether the official may act.\n\nSHORT ANSWER\nYes.\n\nDISCUSSION\nThe statute permits it.\n"
	r := testParser().Parse(text, 1992)

	require.NotNil(t, r.Question)
	require.NotNil(t, r.Conclusion)
	require.NotNil(t, r.Analysis)
	assert.Equal(t, "Yes.", r.Conclusion.Content)
}

func TestParseShortSectionSkipped(t *testing.T) {
	// An empty question span fails the minimum-word gate; the
	// conclusion survives.
	text := "QUESTION\n\nCONCLUSION\nThe official may not participate.\n"
	r := testParser().Parse(text, 2015)

	assert.Nil(t, r.Question)
	require.NotNil(t, r.Conclusion)
	assert.Equal(t, "regex", r.Method)
	assert.NotEmpty(t, r.Issues)
	assert.Contains(t, r.Notes, "skipped (too short): question")
}

func TestParseBoilerplateStripped(t *testing.T) {
	footnote := "The Political Reform Act is contained in Government Code Sections 81000 through 91014. All statutory references are to the Government Code unless otherwise indicated."
	text := "QUESTION\nMay the official vote?\n" + footnote + "\n\nCONCLUSION\nNo.\n"
	r := testParser().Parse(text, 2015)

	require.NotNil(t, r.Question)
	assert.Equal(t, "May the official vote?", r.Question.Content)
	assert.NotContains(t, r.Question.Content, "Political Reform Act is contained")
}

func TestStripBoilerplateFileHeaders(t *testing.T) {
	text := "start\nFile No. A-90-753\nPage 2\nend"
	out := StripBoilerplate(text)
	assert.NotContains(t, out, "File No.")
	assert.NotContains(t, out, "Page 2")
	assert.Contains(t, out, "start")
	assert.Contains(t, out, "end")
}

func TestConfidenceEraAdjustment(t *testing.T) {
	extracted := map[model.SectionType]string{
		model.SectionQuestion:   "q",
		model.SectionConclusion: "c",
	}

	assert.InDelta(t, 0.95, computeConfidence(extracted, nil, 2015), 0.001)
	assert.InDelta(t, 0.90, computeConfidence(extracted, nil, 2005), 0.001)
	assert.InDelta(t, 0.85, computeConfidence(extracted, nil, 1990), 0.001)
	assert.InDelta(t, 0.75, computeConfidence(extracted, nil, 1980), 0.001)
	assert.InDelta(t, 0.90, computeConfidence(extracted, nil, 0), 0.001)
}

func TestConfidenceAllFourBonus(t *testing.T) {
	extracted := map[model.SectionType]string{
		model.SectionQuestion:   "q",
		model.SectionConclusion: "c",
		model.SectionFacts:      "f",
		model.SectionAnalysis:   "a",
	}
	assert.InDelta(t, 0.95, computeConfidence(extracted, nil, 0), 0.001)
	// Capped at 1.0 even with the modern-era bump.
	assert.InDelta(t, 1.0, computeConfidence(extracted, nil, 2015), 0.001)
}

func TestConfidencePartialSections(t *testing.T) {
	onlyFacts := map[model.SectionType]string{model.SectionFacts: "f"}
	assert.InDelta(t, 0.4, computeConfidence(onlyFacts, nil, 0), 0.001)

	onlyQ := map[model.SectionType]string{model.SectionQuestion: "q"}
	assert.InDelta(t, 0.6, computeConfidence(onlyQ, nil, 0), 0.001)
}

func TestConfidenceClamped(t *testing.T) {
	onlyFacts := map[model.SectionType]string{model.SectionFacts: "f"}
	issues := []string{"a", "b", "c", "d", "e", "f"}
	assert.Zero(t, computeConfidence(onlyFacts, issues, 1970))
}

func TestNeedsSynthesis(t *testing.T) {
	p := testParser()

	assert.True(t, p.NeedsSynthesis(nil))
	assert.True(t, p.NeedsSynthesis(&model.SectionResult{Method: "none"}))
	assert.True(t, p.NeedsSynthesis(&model.SectionResult{
		Confidence:        0.4,
		HasStandardFormat: true,
	}))
	assert.True(t, p.NeedsSynthesis(&model.SectionResult{
		Confidence:        0.9,
		HasStandardFormat: false,
	}))
	assert.False(t, p.NeedsSynthesis(&model.SectionResult{
		Confidence:        0.9,
		HasStandardFormat: true,
	}))
}

func TestCleanContentArtifacts(t *testing.T) {
	in := "kept text\n -3- \nmore text\fnext page" + strings.Repeat("\n", 6) + "tail"
	out := cleanContent(in)
	assert.NotContains(t, out, "-3-")
	assert.NotContains(t, out, "\f")
	assert.NotContains(t, out, strings.Repeat("\n", 4))
	assert.Contains(t, out, "kept text")
	assert.Contains(t, out, "tail")
}
