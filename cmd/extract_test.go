package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-archive/fppc-cli/internal/config"
	"github.com/civic-archive/fppc-cli/internal/graph"
	"github.com/civic-archive/fppc-cli/internal/model"
	"github.com/civic-archive/fppc-cli/internal/store"
)

func TestIDFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/scans/1995/A-95-210.pdf", "A-95-210"},
		{"/scans/a-95-210.PDF", "A-95-210"},
		{"/scans/I-04-0332.pdf", "I-04-0332"},
		{"/scans/m88102.pdf", "M-88-102"},
		{"/scans/A-95-210_scan_2.pdf", "A-95-210"},
		{"/scans/letter_347.pdf", ""},
		{"/scans/unknown.pdf", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, idFromFilename(tt.path), tt.path)
	}
}

func TestCollectPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"A-95-210.pdf", "I-90-044.pdf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	sub := filepath.Join(dir, "1988")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "A-88-001.pdf"), []byte("x"), 0644))

	docs, err := collectPDFs(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3, "non-PDF files are ignored")

	// Sorted by path: the subdirectory sorts before top-level files.
	assert.Equal(t, "A-88-001", docs[0].ID)
	assert.Equal(t, 1988, docs[0].Year)
	assert.Equal(t, "A-95-210", docs[1].ID)
	assert.Equal(t, "I-90-044", docs[2].ID)
	assert.Equal(t, model.StatusPending, docs[0].Status)
}

func TestCollectPDFs_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A-95-210.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	docs, err := collectPDFs(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A-95-210", docs[0].ID)
	assert.Equal(t, path, docs[0].SourcePath)
}

func TestCollectPDFs_MissingInput(t *testing.T) {
	_, err := collectPDFs("/nonexistent/dir")
	require.Error(t, err)
}

// memStore is an in-memory store.Store for command-level tests.
type memStore struct {
	docs map[string]*model.Document
}

func newMemStore() *memStore { return &memStore{docs: map[string]*model.Document{}} }

func (m *memStore) UpsertDocument(_ context.Context, doc *model.Document) error {
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *memStore) GetDocument(_ context.Context, id string) (*model.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (m *memStore) GetDocumentBySourcePath(_ context.Context, path string) (*model.Document, error) {
	for _, doc := range m.docs {
		if doc.SourcePath == path {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListDocuments(context.Context, store.DocumentFilter) ([]model.Document, error) {
	return nil, nil
}
func (m *memStore) GraphNodes(context.Context) ([]graph.Node, error)      { return nil, nil }
func (m *memStore) UpdateCitedBy(context.Context, string, []string) error { return nil }
func (m *memStore) ReplaceKnownGaps(context.Context, []graph.Gap) error   { return nil }
func (m *memStore) ListKnownGaps(context.Context) ([]graph.Gap, error)    { return nil, nil }
func (m *memStore) Summarize(context.Context) (*store.Summary, error)     { return nil, nil }
func (m *memStore) Migrate(context.Context) error                         { return nil }
func (m *memStore) Close() error                                          { return nil }

func TestFilterProcessed(t *testing.T) {
	st := newMemStore()
	st.docs["A-95-210"] = &model.Document{
		ID:         "A-95-210",
		Status:     model.StatusProcessed,
		Extraction: &model.ExtractionRecord{Method: model.MethodTextLayer, QualityScore: 0.8},
	}
	st.docs["A-95-211"] = &model.Document{
		ID:     "A-95-211",
		Status: model.StatusExtractionFailed,
	}

	docs := []*model.Document{
		{ID: "A-95-210", SourcePath: "/scans/A-95-210.pdf"},
		{ID: "A-95-211", SourcePath: "/scans/A-95-211.pdf"},
		{ID: "A-95-212", SourcePath: "/scans/A-95-212.pdf"},
		{ID: "", SourcePath: "/scans/unknown.pdf"},
	}

	out, skipped, err := filterProcessed(context.Background(), st, docs, false)
	require.NoError(t, err)

	assert.Equal(t, 1, skipped, "processed record is skipped without --force")
	require.Len(t, out, 3)

	// The failed record is retried, carrying its stored state.
	assert.Equal(t, "A-95-211", out[0].ID)
	assert.Equal(t, model.StatusExtractionFailed, out[0].Status)
	assert.Equal(t, "/scans/A-95-211.pdf", out[0].SourcePath)

	assert.Equal(t, "A-95-212", out[1].ID)
	assert.Empty(t, out[2].ID, "unseen documents without ids still run")
}

func TestFilterProcessed_ResolvesRecoveredIDBySourcePath(t *testing.T) {
	// First run recovered A-95-210 from the document body; the scan
	// filename never carried the id. The rerun must still skip it.
	st := newMemStore()
	st.docs["A-95-210"] = &model.Document{
		ID:         "A-95-210",
		SourcePath: "/scans/scan_0042.pdf",
		Status:     model.StatusProcessed,
		Extraction: &model.ExtractionRecord{Method: model.MethodVision, QualityScore: 0.7},
	}

	docs := []*model.Document{{ID: "", SourcePath: "/scans/scan_0042.pdf"}}

	out, skipped, err := filterProcessed(context.Background(), st, docs, false)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Empty(t, out)

	// With force the stored record is carried forward under its
	// recovered id, keeping the quality floor intact.
	docs = []*model.Document{{ID: "", SourcePath: "/scans/scan_0042.pdf"}}
	out, skipped, err = filterProcessed(context.Background(), st, docs, true)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, out, 1)
	assert.Equal(t, "A-95-210", out[0].ID)
	require.NotNil(t, out[0].Extraction)
	assert.Equal(t, 0.7, out[0].Extraction.QualityScore)
}

func TestFilterProcessed_Force(t *testing.T) {
	st := newMemStore()
	st.docs["A-95-210"] = &model.Document{
		ID:         "A-95-210",
		Status:     model.StatusProcessed,
		Extraction: &model.ExtractionRecord{Method: model.MethodTextLayer, QualityScore: 0.8},
		Citations:  &model.CitationSet{CitedBy: []string{"A-96-001"}},
	}

	docs := []*model.Document{{ID: "A-95-210", SourcePath: "/scans/a.pdf"}}
	out, skipped, err := filterProcessed(context.Background(), st, docs, true)
	require.NoError(t, err)

	assert.Zero(t, skipped)
	require.Len(t, out, 1)
	// Force reprocessing still starts from the stored record so the
	// quality floor and cited_by list survive.
	require.NotNil(t, out[0].Extraction)
	assert.Equal(t, []string{"A-96-001"}, out[0].Citations.CitedBy)
}

func TestBackupStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "fppc.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("registry bytes"), 0644))

	prev := cfg
	defer func() { cfg = prev }()
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite", Path: dbPath}}

	require.NoError(t, backupStore())

	matches, err := filepath.Glob(dbPath + ".bak.*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("registry bytes"), data)
}

func TestBackupStore_MissingDatabase(t *testing.T) {
	prev := cfg
	defer func() { cfg = prev }()
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "absent.db")}}

	require.NoError(t, backupStore())
}
