package engine

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civic-archive/fppc-cli/internal/model"
	"github.com/civic-archive/fppc-cli/pkg/anthropic"
)

// transcriptionPrompt instructs the model to act as an OCR engine, not
// a summarizer. Description-mode output slips through occasionally
// anyway; the fidelity verifier catches it downstream.
const transcriptionPrompt = `Transcribe exactly what you see in this document image.
Rules:
- Copy the text verbatim, preserving the original wording, spelling, and punctuation.
- Maintain paragraph breaks.
- Do NOT summarize, paraphrase, or describe the document.
- Do NOT add commentary, headers, or labels that are not in the original.
- If a word or section is illegible, write [illegible] in its place.
- Return ONLY the transcribed text.`

// strictTranscriptionPrompt is the remediation-pass variant used when a
// first transcription failed fidelity verification.
const strictTranscriptionPrompt = `You are a verbatim transcription engine. Output only characters that are visibly printed in this document image.
Rules:
- Never describe the image, the document, or its condition.
- Never guess at faded or damaged words. Write [illegible] for anything you cannot read with certainty.
- Never complete sentences, fix spelling, or normalize formatting.
- Preserve line and paragraph breaks as printed.
- If the entire page is unreadable, output only [illegible page].
- Return ONLY the transcribed text, with no preamble.`

// pageInstruction is the per-page user turn. The rules live in a cached
// system block shared across pages and documents.
const pageInstruction = "Transcribe this page."

// VisionOptions configures a Vision engine.
type VisionOptions struct {
	Model          string
	MaxTokens      int64
	RequestsPerMin int
	PdfToPpmPath   string
	RenderDPI      int
	MaxPages       int
	Timeout        time.Duration
}

// Vision transcribes page images through a vision-language model.
// Fluent on degraded scans where OCR falls apart, but capable of
// fabricating plausible text, so its output is never trusted without a
// fidelity assessment against the baseline engine.
type Vision struct {
	client  anthropic.Client
	limiter *rate.Limiter
	opts    VisionOptions
}

// NewVision creates a Vision engine sharing one rate limiter across
// all callers.
func NewVision(client anthropic.Client, opts VisionOptions) *Vision {
	rpm := opts.RequestsPerMin
	if rpm <= 0 {
		rpm = 50
	}
	return &Vision{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		opts:    opts,
	}
}

// Method implements Engine.
func (v *Vision) Method() model.Method {
	return model.MethodVision
}

// Attempt transcribes up to MaxPages pages with the standard prompt.
func (v *Vision) Attempt(ctx context.Context, pdfPath string) (*Result, error) {
	return v.transcribe(ctx, pdfPath, transcriptionPrompt)
}

// AttemptStrict transcribes with the constrained remediation prompt.
func (v *Vision) AttemptStrict(ctx context.Context, pdfPath string) (*Result, error) {
	return v.transcribe(ctx, pdfPath, strictTranscriptionPrompt)
}

// WarmCache primes the transcription prompt cache so a concurrent batch
// shares one cache write. Returns the primer's cost.
func (v *Vision) WarmCache(ctx context.Context) (float64, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "engine: vision rate limit wait")
	}
	resp, err := anthropic.PrimerRequest(ctx, v.client, anthropic.MessageRequest{
		Model:     v.opts.Model,
		MaxTokens: 8,
		System:    anthropic.BuildCachedSystemBlocks(transcriptionPrompt),
		Messages:  []anthropic.Message{anthropic.TextMessage("user", "Reply with OK.")},
	})
	if err != nil {
		return 0, err
	}
	return resp.Usage.EstimateCost(v.opts.Model), nil
}

func (v *Vision) transcribe(ctx context.Context, pdfPath, prompt string) (*Result, error) {
	pages, cleanup, err := renderPages(ctx, v.opts.PdfToPpmPath, pdfPath, v.opts.RenderDPI, v.opts.MaxPages)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	texts := make([]string, 0, len(pages))
	var cost float64

	for i, page := range pages {
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "engine: vision rate limit wait")
		}

		img, err := os.ReadFile(page)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: read rendered page %d", i+1)
		}

		text, pageCost, err := v.transcribePage(ctx, img, prompt)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: vision transcription failed on page %d of %s", i+1, pdfPath)
		}
		texts = append(texts, text)
		cost += pageCost
	}

	zap.L().Debug("vision transcription complete",
		zap.String("pdf", pdfPath),
		zap.Int("pages", len(pages)),
		zap.Float64("cost_usd", cost))

	return &Result{
		Text:      strings.Join(texts, "\n\n"),
		PageCount: len(pages),
		CostUSD:   cost,
	}, nil
}

func (v *Vision) transcribePage(ctx context.Context, img []byte, prompt string) (string, float64, error) {
	if v.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.opts.Timeout)
		defer cancel()
	}

	temp := 0.0
	resp, err := v.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     v.opts.Model,
		MaxTokens: v.opts.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(prompt),
		Messages: []anthropic.Message{
			anthropic.ImageMessage("image/png", img, pageInstruction),
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", 0, err
	}
	return resp.Text(), resp.Usage.EstimateCost(v.opts.Model), nil
}
