package engine

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civic-archive/fppc-cli/internal/model"
)

// TextLayer extracts the PDF's embedded text layer via the pdftotext
// CLI tool. Free and deterministic, so it is always attempted first.
type TextLayer struct {
	binPath string
	timeout time.Duration
}

// NewTextLayer creates a TextLayer engine. If binPath is empty,
// "pdftotext" is used.
func NewTextLayer(binPath string, timeout time.Duration) *TextLayer {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &TextLayer{binPath: binPath, timeout: timeout}
}

// Method implements Engine.
func (t *TextLayer) Method() model.Method {
	return model.MethodTextLayer
}

// Attempt runs pdftotext -layout on the given PDF. The page count is
// recovered from the form feeds pdftotext emits between pages.
func (t *TextLayer) Attempt(ctx context.Context, pdfPath string) (*Result, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "engine: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	text := stdout.String()
	pages := strings.Count(text, "\f")
	if strings.TrimSpace(text) != "" && !strings.HasSuffix(text, "\f") {
		pages++
	}

	return &Result{Text: text, PageCount: pages}, nil
}
