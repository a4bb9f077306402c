package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civic-archive/fppc-cli/internal/cost"
	"github.com/civic-archive/fppc-cli/internal/extract"
	"github.com/civic-archive/fppc-cli/internal/model"
	"github.com/civic-archive/fppc-cli/internal/store"
	"github.com/civic-archive/fppc-cli/pkg/anthropic"
)

var (
	extractInput  string
	extractLimit  int
	extractForce  bool
	extractDryRun bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract and structure letters from scanned PDFs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if extractForce && !extractDryRun {
			if err := backupStore(); err != nil {
				return err
			}
		}

		st, err := openStore(ctx, "extract")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		docs, err := collectPDFs(extractInput)
		if err != nil {
			return err
		}
		docs, skipped, err := filterProcessed(ctx, st, docs, extractForce)
		if err != nil {
			return err
		}
		if extractLimit > 0 && len(docs) > extractLimit {
			docs = docs[:extractLimit]
		}

		if extractDryRun {
			fmt.Fprintf(os.Stdout, "%d documents would be processed (%d already processed)\n", len(docs), skipped)
			for _, d := range docs {
				fmt.Fprintf(os.Stdout, "  %s\t%s\n", d.ID, d.SourcePath)
			}
			return nil
		}

		if len(docs) == 0 {
			zap.L().Info("nothing to process", zap.Int("skipped", skipped))
			return nil
		}

		tracker := cost.NewTracker(cfg.Pipeline.CostCeilingUSD)
		client := anthropic.NewClient(cfg.Anthropic.Key)
		pipeline := extract.New(cfg, client, tracker)
		if cfg.Pipeline.Concurrency > 1 {
			pipeline.WarmCache(ctx)
		}

		zap.L().Info("processing batch",
			zap.Int("documents", len(docs)),
			zap.Int("skipped", skipped),
			zap.Int("concurrency", cfg.Pipeline.Concurrency))

		var succeeded, failed atomic.Int64
		halted := 0

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Pipeline.Concurrency)

		for i, doc := range docs {
			if err := tracker.Check(); err != nil {
				halted = len(docs) - i
				zap.L().Warn("cost ceiling reached, halting batch",
					zap.Float64("spent_usd", tracker.Spent()),
					zap.Int("remaining", halted))
				break
			}

			g.Go(func() error {
				log := zap.L().With(zap.String("id", doc.ID))

				if err := pipeline.Process(gctx, doc); err != nil {
					failed.Add(1)
					log.Error("document processing failed", zap.Error(err))
					return nil // one bad scan never aborts the batch
				}
				if err := st.UpsertDocument(gctx, doc); err != nil {
					failed.Add(1)
					log.Error("persist document failed", zap.Error(err))
					return nil
				}

				if doc.Status == model.StatusExtractionFailed {
					failed.Add(1)
				} else {
					succeeded.Add(1)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch processing")
		}

		zap.L().Info("batch complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
			zap.Int("halted", halted),
			zap.Int("skipped", skipped),
			zap.Float64("spent_usd", tracker.Spent()))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractInput, "input", "", "PDF file or directory of PDFs (required)")
	extractCmd.Flags().IntVar(&extractLimit, "limit", 0, "max number of documents to process (0 = all)")
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "reprocess documents that are already processed")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "list what would be processed without extracting")
	_ = extractCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(extractCmd)
}

// backupStore copies the SQLite database aside before a force run
// overwrites records in place. Postgres deployments carry their own
// backup regime.
func backupStore() error {
	if cfg.Store.Driver != "sqlite" {
		zap.L().Warn("force run without automatic backup",
			zap.String("driver", cfg.Store.Driver))
		return nil
	}
	path := cfg.Store.Path
	if path == "" {
		path = "fppc.db"
	}
	src, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "open store for backup %s", path)
	}
	defer src.Close() //nolint:errcheck

	backup := fmt.Sprintf("%s.bak.%s", path, time.Now().UTC().Format("20060102T150405Z"))
	dst, err := os.Create(backup)
	if err != nil {
		return eris.Wrapf(err, "create backup %s", backup)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close() //nolint:errcheck
		return eris.Wrapf(err, "write backup %s", backup)
	}
	if err := dst.Close(); err != nil {
		return eris.Wrapf(err, "close backup %s", backup)
	}

	zap.L().Info("backed up store before force run", zap.String("backup", backup))
	return nil
}

// reLetterFile matches letter identifiers embedded in scan filenames,
// e.g. "A-95-210.pdf", "a95-210.pdf", "I-04-0332.pdf".
var reLetterFile = regexp.MustCompile(`(?i)^([AIM])-?(\d{2})-?(\d{3,4})`)

// idFromFilename derives the letter identifier from a scan filename,
// empty when the name carries none. Recovery from the document body
// happens later in the pipeline.
func idFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := reLetterFile.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", strings.ToUpper(m[1]), m[2], m[3])
}

// collectPDFs expands the input path into pending documents, one per
// PDF, sorted by path for deterministic batch order.
func collectPDFs(input string) ([]*model.Document, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, eris.Wrapf(err, "stat input %s", input)
	}

	var paths []string
	if info.IsDir() {
		err := filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "walk input %s", input)
		}
	} else {
		paths = []string{input}
	}
	sort.Strings(paths)

	docs := make([]*model.Document, 0, len(paths))
	for _, p := range paths {
		id := idFromFilename(p)
		docs = append(docs, &model.Document{
			ID:         id,
			Year:       extract.YearFromID(id),
			SourcePath: p,
			Status:     model.StatusPending,
		})
	}
	return docs, nil
}

// filterProcessed loads existing records and drops already-processed
// documents unless force is set. Existing records are carried into the
// batch so attempts accumulate and cited_by survives re-extraction.
// Documents whose filename yields no identifier are resolved by source
// path, since the first run may have recovered their id from the body.
func filterProcessed(ctx context.Context, st store.Store, docs []*model.Document, force bool) ([]*model.Document, int, error) {
	out := docs[:0]
	skipped := 0
	for _, doc := range docs {
		var existing *model.Document
		var err error
		if doc.ID != "" {
			existing, err = st.GetDocument(ctx, doc.ID)
		} else {
			existing, err = st.GetDocumentBySourcePath(ctx, doc.SourcePath)
		}
		if err != nil {
			return nil, 0, eris.Wrapf(err, "load existing record %s", doc.SourcePath)
		}
		if existing != nil {
			if existing.Processed() && !force {
				skipped++
				continue
			}
			existing.SourcePath = doc.SourcePath
			doc = existing
		}
		out = append(out, doc)
	}
	return out, skipped, nil
}
