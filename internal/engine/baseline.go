package engine

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civic-archive/fppc-cli/internal/model"
)

// BaselineOCR rasterizes pages with pdftoppm and recognizes them with
// tesseract. Fragile on degraded scans but deterministic and honest:
// it garbles text rather than inventing it, which is what makes it
// usable as the fidelity witness for vision output.
type BaselineOCR struct {
	tesseractPath string
	pdfToPpmPath  string
	dpi           int
	timeout       time.Duration
}

// NewBaselineOCR creates a BaselineOCR engine. Empty binary paths fall
// back to the tools' conventional names on PATH.
func NewBaselineOCR(tesseractPath, pdfToPpmPath string, dpi int, timeout time.Duration) *BaselineOCR {
	if tesseractPath == "" {
		tesseractPath = "tesseract"
	}
	return &BaselineOCR{
		tesseractPath: tesseractPath,
		pdfToPpmPath:  pdfToPpmPath,
		dpi:           dpi,
		timeout:       timeout,
	}
}

// Method implements Engine.
func (b *BaselineOCR) Method() model.Method {
	return model.MethodBaselineOCR
}

// Attempt renders every page and runs tesseract on each. A page that
// fails recognition contributes empty text instead of failing the
// document; scans bad enough to break tesseract are exactly the ones
// this engine exists to report on honestly.
func (b *BaselineOCR) Attempt(ctx context.Context, pdfPath string) (*Result, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	pages, cleanup, err := renderPages(ctx, b.pdfToPpmPath, pdfPath, b.dpi, 0)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		text, err := b.recognize(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrapf(ctx.Err(), "engine: baseline ocr timed out on %s", pdfPath)
			}
			zap.L().Warn("tesseract failed on page",
				zap.String("pdf", pdfPath),
				zap.Int("page", i+1),
				zap.Error(err))
			text = ""
		}
		texts = append(texts, text)
	}

	return &Result{
		Text:      strings.Join(texts, "\n\n"),
		PageCount: len(pages),
	}, nil
}

func (b *BaselineOCR) recognize(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, b.tesseractPath, imagePath, "stdout")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "engine: tesseract failed for %s: %s", imagePath, stderr.String())
	}
	return stdout.String(), nil
}
