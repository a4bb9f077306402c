package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/civic-archive/fppc-cli/internal/model"
	"github.com/civic-archive/fppc-cli/pkg/anthropic"
)

const synthesisSystemPrompt = `You are analyzing California FPPC (Fair Political Practices Commission) advice letters. Extract structured information and return ONLY valid JSON. Do not wrap in markdown code fences. Do not include any text outside the JSON object.`

const (
	synthesisMaxTokens = 1024

	// defaultSynthesisMaxChars bounds the document text sent per
	// request when no limit is configured.
	defaultSynthesisMaxChars = 12000

	// defaultSynthesisConfidence is assumed when the model omits its
	// self-reported confidence.
	defaultSynthesisConfidence = 0.5
)

// Synthesizer fills in synthetic question and conclusion sections plus
// a summary when the pattern parser comes up short. Safe for
// concurrent use.
type Synthesizer struct {
	client   anthropic.Client
	model    string
	maxChars int
}

// NewSynthesizer builds a Synthesizer for the given model.
func NewSynthesizer(client anthropic.Client, model string, maxChars int) *Synthesizer {
	if maxChars <= 0 {
		maxChars = defaultSynthesisMaxChars
	}
	return &Synthesizer{client: client, model: model, maxChars: maxChars}
}

// synthesisResponse is the JSON object the model is instructed to
// return. Null fields decode to their zero values.
type synthesisResponse struct {
	DocumentType         string  `json:"document_type"`
	IsResponse           bool    `json:"is_fppc_response"`
	Question             string  `json:"question"`
	QuestionSynthetic    string  `json:"question_synthetic"`
	Conclusion           string  `json:"conclusion"`
	ConclusionSynthetic  string  `json:"conclusion_synthetic"`
	Summary              string  `json:"summary"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
	Notes                string  `json:"notes"`
}

// synthDocTypes maps the model's document-type vocabulary onto ours.
// Everything that closes a request without answering it collapses to
// correspondence.
var synthDocTypes = map[string]model.DocumentType{
	"advice_letter":    model.DocTypeAdviceLetter,
	"incoming_request": model.DocTypeCorrespondence,
	"withdrawal":       model.DocTypeCorrespondence,
	"declination":      model.DocTypeCorrespondence,
	"correspondence":   model.DocTypeCorrespondence,
	"other":            model.DocTypeOther,
}

// Enhance calls the synthesis model and merges its output into res.
// Pattern-matched sections are never overwritten; synthetic fields are
// always set when the model provides them. Returns the request cost,
// which is incurred even when the response fails to parse.
func (s *Synthesizer) Enhance(ctx context.Context, doc *model.Document, res *model.SectionResult, text string) (float64, error) {
	temp := 0.0
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: synthesisMaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(synthesisSystemPrompt),
		Messages: []anthropic.Message{
			anthropic.TextMessage("user", s.buildPrompt(doc, res, text)),
		},
		Temperature: &temp,
	})
	if err != nil {
		return 0, eris.Wrap(err, "extract: synthesis request")
	}
	costUSD := resp.Usage.EstimateCost(s.model)

	raw, err := salvageJSON(resp.Text())
	if err != nil {
		return costUSD, err
	}
	var out synthesisResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return costUSD, eris.Wrap(err, "extract: decode synthesis response")
	}

	apply(doc, res, &out)
	return costUSD, nil
}

func (s *Synthesizer) buildPrompt(doc *model.Document, res *model.SectionResult, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document ID: %s\n", doc.ID)
	fmt.Fprintf(&b, "Year: %d\n", doc.Year)
	fmt.Fprintf(&b, "Detected type: %s\n", doc.DocumentType)
	if res != nil && res.Notes != "" {
		fmt.Fprintf(&b, "Parsing notes: %s\n", res.Notes)
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(truncateAtWord(text, s.maxChars))
	b.WriteString(`

Return a JSON object with exactly these fields:
{
  "document_type": "advice_letter" | "incoming_request" | "withdrawal" | "declination" | "correspondence" | "other",
  "is_fppc_response": true or false,
  "question": "the question presented, verbatim from the text, or null if not stated",
  "question_synthetic": "a 1-3 sentence restatement of the question (always provide)",
  "conclusion": "the conclusion, verbatim from the text, or null if not stated",
  "conclusion_synthetic": "a 1-3 sentence restatement of the conclusion (always provide)",
  "summary": "a 1-2 sentence summary of the letter",
  "extraction_confidence": 0.0 to 1.0,
  "notes": "anything unusual about this document"
}`)
	return b.String()
}

// truncateAtWord cuts text at the limit, backing up to the last space
// when one falls in the final fifth so a word is not split mid-token.
func truncateAtWord(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if i := strings.LastIndex(cut, " "); float64(i) > 0.8*float64(maxChars) {
		cut = cut[:i]
	}
	return cut + "\n[... truncated]"
}

var reJSONObject = regexp.MustCompile(`\{[\s\S]*\}`)

// salvageJSON recovers the JSON object from a model response that may
// be fenced or wrapped in prose despite instructions.
func salvageJSON(raw string) ([]byte, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if json.Valid([]byte(cleaned)) {
		return []byte(cleaned), nil
	}
	if m := reJSONObject.FindString(cleaned); m != "" && json.Valid([]byte(m)) {
		return []byte(m), nil
	}
	return nil, eris.New("extract: no JSON object in synthesis response")
}

func apply(doc *model.Document, res *model.SectionResult, out *synthesisResponse) {
	conf := out.ExtractionConfidence
	if conf <= 0 {
		conf = defaultSynthesisConfidence
	}

	// Verbatim fields fill gaps only; a pattern match always wins.
	if res.Question == nil && out.Question != "" {
		res.Question = &model.Section{Content: out.Question, Confidence: conf}
	}
	if res.Conclusion == nil && out.Conclusion != "" {
		res.Conclusion = &model.Section{Content: out.Conclusion, Confidence: conf}
	}

	if out.QuestionSynthetic != "" {
		res.QuestionSynthetic = &model.Section{Content: out.QuestionSynthetic, Synthetic: true, Confidence: conf}
	}
	if out.ConclusionSynthetic != "" {
		res.ConclusionSynthetic = &model.Section{Content: out.ConclusionSynthetic, Synthetic: true, Confidence: conf}
	}
	if out.Summary != "" {
		res.Summary = out.Summary
	}

	res.Method = "llm"
	res.Confidence = conf
	if out.Notes != "" {
		note := "LLM: " + out.Notes
		if res.Notes != "" {
			res.Notes += "; " + note
		} else {
			res.Notes = note
		}
	}

	if dt, ok := synthDocTypes[out.DocumentType]; ok {
		doc.DocumentType = dt
	}
}
