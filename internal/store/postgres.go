package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civic-archive/fppc-cli/internal/db"
	"github.com/civic-archive/fppc-cli/internal/graph"
	"github.com/civic-archive/fppc-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	upsertDocumentSQL = `INSERT INTO documents (id, year, status, method, risk_tier, topic, quality, cost_usd, record, processed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   year = EXCLUDED.year, status = EXCLUDED.status, method = EXCLUDED.method,
		   risk_tier = EXCLUDED.risk_tier, topic = EXCLUDED.topic, quality = EXCLUDED.quality,
		   cost_usd = EXCLUDED.cost_usd, record = EXCLUDED.record,
		   processed_at = EXCLUDED.processed_at, updated_at = EXCLUDED.updated_at`

	getDocumentSQL = `SELECT record FROM documents WHERE id = $1`

	getBySourcePathSQL = `SELECT record FROM documents WHERE record->>'source_path' = $1 LIMIT 1`

	updateCitedBySQL = `UPDATE documents
		 SET record = jsonb_set(record, '{citations,cited_by}', $1::jsonb, true), updated_at = $2
		 WHERE id = $3`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"upsert_document":    upsertDocumentSQL,
	"get_document":       getDocumentSQL,
	"get_by_source_path": getBySourcePathSQL,
	"update_cited_by":    updateCitedBySQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	year         INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'pending',
	method       TEXT NOT NULL DEFAULT 'none',
	risk_tier    TEXT NOT NULL DEFAULT '',
	topic        TEXT NOT NULL DEFAULT '',
	quality      DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	record       JSONB NOT NULL,
	processed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_year ON documents(year);
CREATE INDEX IF NOT EXISTS idx_documents_risk_tier ON documents(risk_tier);
CREATE INDEX IF NOT EXISTS idx_documents_topic ON documents(topic);
CREATE INDEX IF NOT EXISTS idx_documents_source_path ON documents((record->>'source_path'));

CREATE TABLE IF NOT EXISTS known_gaps (
	id             TEXT PRIMARY KEY,
	cited_by_count INTEGER NOT NULL DEFAULT 0,
	examples       JSONB NOT NULL DEFAULT '[]',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_known_gaps_count ON known_gaps(cited_by_count);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertDocument(ctx context.Context, doc *model.Document) error {
	record, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal document %s", doc.ID)
	}

	cols := indexColumns(doc)
	now := time.Now().UTC()

	var processedAt any
	if !doc.ProcessedAt.IsZero() {
		processedAt = doc.ProcessedAt.UTC()
	}

	_, err = s.pool.Exec(ctx, upsertDocumentSQL,
		doc.ID, doc.Year, string(doc.Status), cols.Method, cols.RiskTier, cols.Topic,
		cols.Quality, cols.CostUSD, record, processedAt, now, now,
	)
	return eris.Wrapf(err, "postgres: upsert document %s", doc.ID)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var record []byte
	err := s.pool.QueryRow(ctx, getDocumentSQL, id).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}

	var doc model.Document
	if err := json.Unmarshal(record, &doc); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal document %s", id)
	}
	return &doc, nil
}

// GetDocumentBySourcePath resolves a record by its scan path, for
// resume runs where the filename carries no letter identifier and the
// stored id was recovered from the document body.
func (s *PostgresStore) GetDocumentBySourcePath(ctx context.Context, path string) (*model.Document, error) {
	var record []byte
	err := s.pool.QueryRow(ctx, getBySourcePathSQL, path).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get document by source path %s", path)
	}

	var doc model.Document
	if err := json.Unmarshal(record, &doc); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal document at %s", path)
	}
	return &doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT record FROM documents WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Year != 0 {
		query += fmt.Sprintf(` AND year = $%d`, argIdx)
		args = append(args, filter.Year)
		argIdx++
	}
	if filter.RiskTier != "" {
		query += fmt.Sprintf(` AND risk_tier = $%d`, argIdx)
		args = append(args, string(filter.RiskTier))
		argIdx++
	}
	if filter.Topic != "" {
		query += fmt.Sprintf(` AND topic = $%d`, argIdx)
		args = append(args, string(filter.Topic))
		argIdx++
	}
	query += ` ORDER BY year, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		var doc model.Document
		if err := json.Unmarshal(record, &doc); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal document")
		}
		docs = append(docs, doc)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) GraphNodes(ctx context.Context) ([]graph.Node, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, record->'citations'->'prior_decisions' FROM documents WHERE status = $1 ORDER BY id`,
		string(model.StatusProcessed),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: graph nodes")
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		var n graph.Node
		var priors []byte
		if err := rows.Scan(&n.ID, &priors); err != nil {
			return nil, eris.Wrap(err, "postgres: scan graph node")
		}
		if len(priors) > 0 {
			if err := json.Unmarshal(priors, &n.PriorDecisions); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal prior decisions for %s", n.ID)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, eris.Wrap(rows.Err(), "postgres: graph nodes iterate")
}

func (s *PostgresStore) UpdateCitedBy(ctx context.Context, id string, citedBy []string) error {
	citedJSON, err := json.Marshal(citedBy)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal cited_by for %s", id)
	}

	tag, err := s.pool.Exec(ctx, updateCitedBySQL, citedJSON, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update cited_by %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

// ReplaceKnownGaps upserts the new gap set with a single batch
// timestamp, then sweeps rows the batch did not touch. The table is
// never observed empty between the two statements.
func (s *PostgresStore) ReplaceKnownGaps(ctx context.Context, gaps []graph.Gap) error {
	now := time.Now().UTC()

	rows := make([][]any, 0, len(gaps))
	for _, g := range gaps {
		examples, err := json.Marshal(g.ExampleCitingDocs)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal gap examples %s", g.ID)
		}
		rows = append(rows, []any{g.ID, g.CitedByCount, examples, now})
	}

	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "known_gaps",
		Columns:      []string{"id", "cited_by_count", "examples", "updated_at"},
		ConflictKeys: []string{"id"},
	}, rows); err != nil {
		return eris.Wrap(err, "postgres: upsert known gaps")
	}

	_, err := s.pool.Exec(ctx, `DELETE FROM known_gaps WHERE updated_at < $1`, now)
	return eris.Wrap(err, "postgres: sweep stale gaps")
}

func (s *PostgresStore) ListKnownGaps(ctx context.Context) ([]graph.Gap, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cited_by_count, examples FROM known_gaps
		 ORDER BY cited_by_count DESC, id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list known gaps")
	}
	defer rows.Close()

	var gaps []graph.Gap
	for rows.Next() {
		var g graph.Gap
		var examples []byte
		if err := rows.Scan(&g.ID, &g.CitedByCount, &examples); err != nil {
			return nil, eris.Wrap(err, "postgres: scan gap")
		}
		if err := json.Unmarshal(examples, &g.ExampleCitingDocs); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal gap examples %s", g.ID)
		}
		gaps = append(gaps, g)
	}
	return gaps, eris.Wrap(rows.Err(), "postgres: list known gaps iterate")
}

func (s *PostgresStore) Summarize(ctx context.Context) (*Summary, error) {
	sum := &Summary{}

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(quality), 0), COALESCE(SUM(cost_usd), 0) FROM documents`,
	).Scan(&sum.Documents, &sum.AvgQuality, &sum.TotalCostUSD)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize documents")
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

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM known_gaps`).Scan(&sum.KnownGaps)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize gaps")
	}
	return sum, nil
}

func (s *PostgresStore) countBy(ctx context.Context, column string) (map[string]int, error) {
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM documents WHERE %s != '' GROUP BY %s`,
		column, column, column,
	)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: count by %s", column)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan count by %s", column)
		}
		counts[key] = n
	}
	return counts, eris.Wrapf(rows.Err(), "postgres: count by %s iterate", column)
}
