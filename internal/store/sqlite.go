package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civic-archive/fppc-cli/internal/graph"
	"github.com/civic-archive/fppc-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	year         INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'pending',
	method       TEXT NOT NULL DEFAULT 'none',
	risk_tier    TEXT NOT NULL DEFAULT '',
	topic        TEXT NOT NULL DEFAULT '',
	quality      REAL NOT NULL DEFAULT 0,
	cost_usd     REAL NOT NULL DEFAULT 0,
	record       TEXT NOT NULL,
	processed_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_year ON documents(year);
CREATE INDEX IF NOT EXISTS idx_documents_risk_tier ON documents(risk_tier);
CREATE INDEX IF NOT EXISTS idx_documents_topic ON documents(topic);
CREATE INDEX IF NOT EXISTS idx_documents_source_path ON documents(json_extract(record, '$.source_path'));

CREATE TABLE IF NOT EXISTS known_gaps (
	id             TEXT PRIMARY KEY,
	cited_by_count INTEGER NOT NULL DEFAULT 0,
	examples       TEXT NOT NULL DEFAULT '[]',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_known_gaps_count ON known_gaps(cited_by_count);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc *model.Document) error {
	record, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal document %s", doc.ID)
	}

	cols := indexColumns(doc)
	now := time.Now().UTC()

	var processedAt any
	if !doc.ProcessedAt.IsZero() {
		processedAt = doc.ProcessedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, year, status, method, risk_tier, topic, quality, cost_usd, record, processed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   year = excluded.year, status = excluded.status, method = excluded.method,
		   risk_tier = excluded.risk_tier, topic = excluded.topic, quality = excluded.quality,
		   cost_usd = excluded.cost_usd, record = excluded.record,
		   processed_at = excluded.processed_at, updated_at = excluded.updated_at`,
		doc.ID, doc.Year, string(doc.Status), cols.Method, cols.RiskTier, cols.Topic,
		cols.Quality, cols.CostUSD, string(record), processedAt, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert document %s", doc.ID)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM documents WHERE id = ?`, id,
	).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}

	var doc model.Document
	if err := json.Unmarshal([]byte(record), &doc); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal document %s", id)
	}
	return &doc, nil
}

// GetDocumentBySourcePath resolves a record by its scan path, for
// resume runs where the filename carries no letter identifier and the
// stored id was recovered from the document body.
func (s *SQLiteStore) GetDocumentBySourcePath(ctx context.Context, path string) (*model.Document, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM documents WHERE json_extract(record, '$.source_path') = ? LIMIT 1`, path,
	).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document by source path %s", path)
	}

	var doc model.Document
	if err := json.Unmarshal([]byte(record), &doc); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal document at %s", path)
	}
	return &doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT record FROM documents WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Year != 0 {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if filter.RiskTier != "" {
		query += ` AND risk_tier = ?`
		args = append(args, string(filter.RiskTier))
	}
	if filter.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, string(filter.Topic))
	}
	query += ` ORDER BY year, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		var doc model.Document
		if err := json.Unmarshal([]byte(record), &doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal document")
		}
		docs = append(docs, doc)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) GraphNodes(ctx context.Context) ([]graph.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, json_extract(record, '$.citations.prior_decisions')
		 FROM documents WHERE status = ? ORDER BY id`,
		string(model.StatusProcessed),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: graph nodes")
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		var n graph.Node
		var priors sql.NullString
		if err := rows.Scan(&n.ID, &priors); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan graph node")
		}
		if priors.Valid {
			if err := json.Unmarshal([]byte(priors.String), &n.PriorDecisions); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal prior decisions for %s", n.ID)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, eris.Wrap(rows.Err(), "sqlite: graph nodes iterate")
}

func (s *SQLiteStore) UpdateCitedBy(ctx context.Context, id string, citedBy []string) error {
	citedJSON, err := json.Marshal(citedBy)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal cited_by for %s", id)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents
		 SET record = json_set(record, '$.citations.cited_by', json(?)), updated_at = ?
		 WHERE id = ?`,
		string(citedJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update cited_by %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) ReplaceKnownGaps(ctx context.Context, gaps []graph.Gap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace gaps")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM known_gaps`); err != nil {
		return eris.Wrap(err, "sqlite: clear known gaps")
	}

	now := time.Now().UTC()
	for _, g := range gaps {
		examples, err := json.Marshal(g.ExampleCitingDocs)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal gap examples %s", g.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO known_gaps (id, cited_by_count, examples, updated_at) VALUES (?, ?, ?, ?)`,
			g.ID, g.CitedByCount, string(examples), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert gap %s", g.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace gaps")
}

func (s *SQLiteStore) ListKnownGaps(ctx context.Context) ([]graph.Gap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cited_by_count, examples FROM known_gaps
		 ORDER BY cited_by_count DESC, id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list known gaps")
	}
	defer rows.Close()

	var gaps []graph.Gap
	for rows.Next() {
		var g graph.Gap
		var examples string
		if err := rows.Scan(&g.ID, &g.CitedByCount, &examples); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan gap")
		}
		if err := json.Unmarshal([]byte(examples), &g.ExampleCitingDocs); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal gap examples %s", g.ID)
		}
		gaps = append(gaps, g)
	}
	return gaps, eris.Wrap(rows.Err(), "sqlite: list known gaps iterate")
}

func (s *SQLiteStore) Summarize(ctx context.Context) (*Summary, error) {
	sum := &Summary{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(quality), 0), COALESCE(SUM(cost_usd), 0) FROM documents`,
	).Scan(&sum.Documents, &sum.AvgQuality, &sum.TotalCostUSD)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize documents")
	}

	for _, c := range []struct {
		column string
		dest   *map[string]int
	}{
		{"status", &sum.ByStatus},
		{"method", &sum.ByMethod},
		{"risk_tier", &sum.ByRiskTier},
		{"topic", &sum.ByTopic},
	} {
		counts, err := s.countBy(ctx, c.column)
		if err != nil {
			return nil, err
		}
		*c.dest = counts
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM known_gaps`).Scan(&sum.KnownGaps)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize gaps")
	}
	return sum, nil
}

// countBy groups documents by one of the indexed columns, skipping
// rows where the column is empty (unassessed tier, unclassified topic).
func (s *SQLiteStore) countBy(ctx context.Context, column string) (map[string]int, error) {
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM documents WHERE %s != '' GROUP BY %s`,
		column, column, column,
	)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: count by %s", column)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan count by %s", column)
		}
		counts[key] = n
	}
	return counts, eris.Wrapf(rows.Err(), "sqlite: count by %s iterate", column)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
