// Package extract orchestrates the per-document pipeline: engine
// escalation, quality scoring, fidelity verification, metadata and
// section parsing, citation extraction, and topic classification.
package extract

import (
	"context"
	"hash/crc32"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-archive/fppc-cli/internal/citations"
	"github.com/civic-archive/fppc-cli/internal/classify"
	"github.com/civic-archive/fppc-cli/internal/config"
	"github.com/civic-archive/fppc-cli/internal/cost"
	"github.com/civic-archive/fppc-cli/internal/engine"
	"github.com/civic-archive/fppc-cli/internal/fidelity"
	"github.com/civic-archive/fppc-cli/internal/model"
	"github.com/civic-archive/fppc-cli/internal/quality"
	"github.com/civic-archive/fppc-cli/internal/resilience"
	"github.com/civic-archive/fppc-cli/internal/sections"
	"github.com/civic-archive/fppc-cli/pkg/anthropic"
)

// VisionEngine adds the strict remediation pass to the basic engine
// contract.
type VisionEngine interface {
	engine.Engine
	AttemptStrict(ctx context.Context, pdfPath string) (*engine.Result, error)
	WarmCache(ctx context.Context) (float64, error)
}

// Pipeline runs the full extraction flow for one document. Safe for
// concurrent use across documents.
type Pipeline struct {
	cfg       *config.Config
	textLayer engine.Engine
	baseline  engine.Engine
	vision    VisionEngine
	synth     *Synthesizer
	scorer    *quality.Scorer
	verifier  *fidelity.Verifier
	parser    *sections.Parser
	tracker   *cost.Tracker
	retry     resilience.RetryConfig
}

// New wires a Pipeline from configuration. client may be nil, in which
// case the vision engine and section synthesis are unavailable and
// escalation stops at baseline OCR.
func New(cfg *config.Config, client anthropic.Client, tracker *cost.Tracker) *Pipeline {
	timeout := time.Duration(cfg.Engines.TimeoutSecs) * time.Second

	retry := resilience.DefaultRetryConfig()
	if cfg.Pipeline.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Pipeline.MaxAttempts
	}

	p := &Pipeline{
		cfg:       cfg,
		textLayer: engine.NewTextLayer(cfg.Engines.PdfToTextPath, timeout),
		baseline:  engine.NewBaselineOCR(cfg.Engines.TesseractPath, cfg.Engines.PdfToPpmPath, cfg.Engines.RenderDPI, timeout),
		scorer:    quality.NewScorer(cfg.Quality),
		verifier:  fidelity.NewVerifier(cfg.Fidelity),
		parser:    sections.NewParser(cfg.Sections),
		tracker:   tracker,
		retry:     retry,
	}

	if client != nil {
		p.vision = engine.NewVision(client, engine.VisionOptions{
			Model:          cfg.Anthropic.VisionModel,
			MaxTokens:      int64(cfg.Anthropic.MaxTokens),
			RequestsPerMin: int(cfg.Anthropic.RequestsPerMin),
			PdfToPpmPath:   cfg.Engines.PdfToPpmPath,
			RenderDPI:      cfg.Engines.RenderDPI,
			MaxPages:       cfg.Engines.MaxVisionPages,
			Timeout:        timeout,
		})
		if cfg.Sections.SynthesisEnabled {
			p.synth = NewSynthesizer(client, cfg.Anthropic.SynthesisModel, cfg.Sections.SynthesisMaxChars)
		}
	}
	return p
}

// WarmCache primes the vision prompt cache once before a batch fans out
// so concurrent workers share one cache write. Failure is harmless; the
// first transcribed page pays the write instead.
func (p *Pipeline) WarmCache(ctx context.Context) {
	if p.vision == nil {
		return
	}
	primerCost, err := p.vision.WarmCache(ctx)
	if err != nil {
		zap.L().Debug("prompt cache primer failed", zap.Error(err))
		return
	}
	if p.tracker != nil {
		p.tracker.Add(primerCost)
	}
}

// candidate pairs one attempt with the extras selection needs.
type candidate struct {
	attempt   model.ExtractionAttempt
	metrics   quality.Metrics
	pageCount int

	// fidelity is nil for deterministic engines.
	fidelity *model.FidelityAssessment
}

// Process runs the document through engine escalation and structuring,
// mutating doc in place. Engine failures are absorbed: a document that
// yields no text at all is marked extraction_failed rather than
// returning an error, so one bad scan never aborts a batch.
func (p *Pipeline) Process(ctx context.Context, doc *model.Document) error {
	log := zap.L().With(zap.String("id", doc.ID), zap.String("pdf", doc.SourcePath))
	start := time.Now()

	cands := p.runEngines(ctx, doc, log)
	for _, c := range cands {
		doc.Attempts = append(doc.Attempts, c.attempt)
	}

	best := selectBest(cands)
	if best == nil || best.attempt.WordCount == 0 {
		if doc.Extraction != nil {
			log.Warn("no engine produced text, retaining stored record")
			return nil
		}
		doc.Status = model.StatusExtractionFailed
		log.Warn("extraction failed, no engine produced text",
			zap.Int("attempts", len(cands)))
		return nil
	}

	// Re-running a document must never regress its stored quality.
	if doc.Extraction != nil && best.attempt.QualityScore < doc.Extraction.QualityScore {
		log.Info("best new attempt scores below stored record, keeping stored record",
			zap.Float64("new_score", best.attempt.QualityScore),
			zap.Float64("stored_score", doc.Extraction.QualityScore))
		return nil
	}

	method := best.attempt.Method
	if method == model.MethodVision && attemptedTextLayer(cands) {
		method = model.MethodTextLayerVision
	}
	doc.Extraction = &model.ExtractionRecord{
		Method:       method,
		Text:         best.attempt.Text,
		WordCount:    best.attempt.WordCount,
		PageCount:    best.pageCount,
		QualityScore: best.attempt.QualityScore,
		CostUSD:      best.attempt.CostUSD,
		ExtractedAt:  time.Now().UTC(),
	}
	if best.fidelity != nil {
		doc.Fidelity = best.fidelity
	} else {
		nt := fidelity.NativeTrusted()
		doc.Fidelity = &nt
	}

	p.structure(ctx, doc, log)

	log.Info("document processed",
		zap.String("method", string(doc.Extraction.Method)),
		zap.Float64("quality_score", doc.Extraction.QualityScore),
		zap.String("risk_tier", string(doc.Fidelity.RiskTier)),
		zap.Int("word_count", doc.Extraction.WordCount),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// runEngines walks the escalation ladder: text layer always, baseline
// OCR and vision only when the text layer's output is suspect.
func (p *Pipeline) runEngines(ctx context.Context, doc *model.Document, log *zap.Logger) []*candidate {
	var cands []*candidate

	text := p.runEngine(ctx, p.textLayer, doc.SourcePath, log)
	if text != nil {
		cands = append(cands, text)
	}

	if text != nil && !p.scorer.ShouldEscalate(doc.Year, text.metrics) {
		return cands
	}

	base := p.runEngine(ctx, p.baseline, doc.SourcePath, log)
	var baselineText string
	if base != nil {
		cands = append(cands, base)
		baselineText = base.attempt.Text
	}

	if p.vision == nil {
		return cands
	}
	if err := p.checkCeiling(); err != nil {
		log.Warn("cost ceiling reached, skipping vision escalation")
		return cands
	}
	return append(cands, p.runVision(ctx, doc.SourcePath, baselineText, log)...)
}

// runEngine executes one engine with retries, returning nil when it
// fails outright. Transient failures are retried; a deterministic
// failure just removes this rung from the ladder.
func (p *Pipeline) runEngine(ctx context.Context, eng engine.Engine, path string, log *zap.Logger) *candidate {
	rc := p.retry
	rc.OnRetry = resilience.RetryLogger("engine", string(eng.Method()))

	res, err := resilience.DoVal(ctx, rc, func(ctx context.Context) (*engine.Result, error) {
		return eng.Attempt(ctx, path)
	})
	if err != nil {
		log.Warn("engine attempt failed",
			zap.String("method", string(eng.Method())),
			zap.Error(err))
		return nil
	}
	return p.newCandidate(eng.Method(), res)
}

func (p *Pipeline) newCandidate(method model.Method, res *engine.Result) *candidate {
	if p.tracker != nil && res.CostUSD > 0 {
		p.tracker.Add(res.CostUSD)
	}
	m := p.scorer.Score(res.Text, res.PageCount)
	return &candidate{
		attempt: model.ExtractionAttempt{
			ID:           uuid.New().String(),
			Method:       method,
			Text:         res.Text,
			WordCount:    engine.WordCount(res.Text),
			QualityScore: m.FinalScore,
			CostUSD:      res.CostUSD,
			AttemptedAt:  time.Now().UTC(),
		},
		metrics:   m,
		pageCount: res.PageCount,
	}
}

// runVision transcribes with the vision model and verifies the result
// against the baseline text. A transcription that fails verification
// is re-run once with the strict prompt; both passes stay in the audit
// trail with their assessments attached.
func (p *Pipeline) runVision(ctx context.Context, path, baselineText string, log *zap.Logger) []*candidate {
	first := p.runEngine(ctx, p.vision, path, log)
	if first == nil {
		return nil
	}

	a := p.verifier.Verify(first.attempt.Text, baselineText)
	first.fidelity = &a
	if !a.RiskTier.NeedsRemediation() {
		return []*candidate{first}
	}

	log.Warn("vision transcription failed fidelity verification, retrying with strict prompt",
		zap.Float64("canary_score", a.CanaryScore),
		zap.String("risk_tier", string(a.RiskTier)),
		zap.Bool("description_mode", a.DescriptionMode))

	if err := p.checkCeiling(); err != nil {
		log.Warn("cost ceiling reached, skipping strict remediation pass")
		return []*candidate{first}
	}

	rc := p.retry
	rc.OnRetry = resilience.RetryLogger("engine", "vision_strict")
	res, err := resilience.DoVal(ctx, rc, func(ctx context.Context) (*engine.Result, error) {
		return p.vision.AttemptStrict(ctx, path)
	})
	if err != nil {
		log.Warn("strict remediation pass failed", zap.Error(err))
		return []*candidate{first}
	}

	strict := p.newCandidate(model.MethodVision, res)
	ra := p.verifier.Replaced(strict.attempt.Text, baselineText)
	strict.fidelity = &ra
	return []*candidate{first, strict}
}

// selectBest picks the winning attempt: most words, then highest
// quality, ties to the cheaper engine. Vision candidates still flagged
// for remediation after the strict pass lose to any trusted candidate
// with text, whatever its score.
func selectBest(cands []*candidate) *candidate {
	better := func(a, b *candidate) bool {
		if a.attempt.WordCount != b.attempt.WordCount {
			return a.attempt.WordCount > b.attempt.WordCount
		}
		if a.attempt.QualityScore != b.attempt.QualityScore {
			return a.attempt.QualityScore > b.attempt.QualityScore
		}
		return a.attempt.Method.Cost() < b.attempt.Method.Cost()
	}

	var trusted, any *candidate
	for _, c := range cands {
		if any == nil || better(c, any) {
			any = c
		}
		if c.fidelity != nil && c.fidelity.RiskTier.NeedsRemediation() {
			continue
		}
		if trusted == nil || better(c, trusted) {
			trusted = c
		}
	}
	if trusted != nil && trusted.attempt.WordCount > 0 {
		return trusted
	}
	return any
}

func attemptedTextLayer(cands []*candidate) bool {
	for _, c := range cands {
		if c.attempt.Method == model.MethodTextLayer {
			return true
		}
	}
	return false
}

// structure derives everything downstream of the trusted text:
// metadata, sections, citations, and classification.
func (p *Pipeline) structure(ctx context.Context, doc *model.Document, log *zap.Logger) {
	text := doc.Extraction.Text

	if d := ParseLetterDate(text); d != "" {
		doc.LetterDate = d
	}
	if doc.Year == 0 && len(doc.LetterDate) >= 4 {
		if y, err := strconv.Atoi(doc.LetterDate[:4]); err == nil {
			doc.Year = y
		}
	}

	// ID resolution runs after date parsing so a placeholder can carry
	// the letter's year.
	p.resolveID(doc, text, log)
	if doc.Year == 0 {
		doc.Year = YearFromID(doc.ID)
	}
	if name, title := ParseRequestor(text); name != "" || title != "" {
		if name != "" {
			doc.Requestor = name
		}
		if title != "" {
			doc.RequestorTitle = title
		}
	}
	doc.DocumentType = DetectDocumentType(doc.ID, text)

	res := p.parser.Parse(text, doc.Year)
	if p.synth != nil && p.parser.NeedsSynthesis(res) {
		if err := p.checkCeiling(); err != nil {
			log.Warn("cost ceiling reached, skipping section synthesis")
		} else {
			costUSD, err := p.synth.Enhance(ctx, doc, res, text)
			if p.tracker != nil && costUSD > 0 {
				p.tracker.Add(costUSD)
			}
			if err != nil {
				log.Warn("section synthesis failed", zap.Error(err))
			}
		}
	}
	doc.Sections = res

	set := citations.Extract(text)
	set.PriorDecisions = citations.FilterSelfCitations(set.PriorDecisions, doc.ID)
	set.PriorDecisions = citations.FilterCoRecipients(set.PriorDecisions, doc.ID, p.cfg.Citations.CoRecipientWindow)
	if doc.Citations != nil {
		// cited_by is owned by the graph pass; re-extraction keeps it.
		set.CitedBy = doc.Citations.CitedBy
	}
	doc.Citations = set

	cls := classify.ByCitations(set.Statutes).Classification
	doc.Classification = &cls

	doc.Status = model.StatusProcessed
	doc.ProcessedAt = time.Now().UTC()
}

// resolveID recovers a letter identifier from the document body when
// the catalog supplied none. A recovered real identifier may replace a
// placeholder, but a placeholder never replaces an existing id.
func (p *Pipeline) resolveID(doc *model.Document, text string, log *zap.Logger) {
	isPlaceholder := strings.HasPrefix(doc.ID, "UNK-")
	if doc.ID != "" && !isPlaceholder {
		return
	}
	if id := citations.RecoverID(text); id != "" {
		log.Info("recovered letter id from document body", zap.String("recovered_id", id))
		doc.ID = id
		return
	}
	if doc.ID == "" {
		seq := int(crc32.ChecksumIEEE([]byte(doc.SourcePath)) % 100000)
		doc.ID = citations.PlaceholderID(doc.Year, seq)
		log.Warn("no letter id recoverable, assigned placeholder",
			zap.String("placeholder_id", doc.ID))
	}
}

func (p *Pipeline) checkCeiling() error {
	if p.tracker == nil {
		return nil
	}
	return p.tracker.Check()
}
