package engine

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// renderPages rasterizes a PDF to per-page PNG files via pdftoppm and
// returns their paths in page order. The caller must call cleanup when
// done with the files. maxPages <= 0 renders every page.
func renderPages(ctx context.Context, binPath, pdfPath string, dpi, maxPages int) (paths []string, cleanup func(), err error) {
	if binPath == "" {
		binPath = "pdftoppm"
	}

	dir, err := os.MkdirTemp("", "fppc-pages-*")
	if err != nil {
		return nil, nil, eris.Wrap(err, "engine: create render dir")
	}
	cleanup = func() { os.RemoveAll(dir) }

	args := []string{"-png", "-r", strconv.Itoa(dpi)}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, pdfPath, filepath.Join(dir, "page"))

	cmd := exec.CommandContext(ctx, binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cleanup()
		return nil, nil, eris.Wrapf(err, "engine: pdftoppm failed for %s: %s", pdfPath, stderr.String())
	}

	paths, err = filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		cleanup()
		return nil, nil, eris.Wrap(err, "engine: list rendered pages")
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(paths)

	if len(paths) == 0 {
		cleanup()
		return nil, nil, eris.Errorf("engine: pdftoppm produced no pages for %s", pdfPath)
	}
	return paths, cleanup, nil
}
