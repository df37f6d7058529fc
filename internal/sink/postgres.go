package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pagescope/sitemapper/internal/crawler"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	run_id      TEXT PRIMARY KEY,
	start_url   TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	pages       INTEGER NOT NULL,
	edges       INTEGER NOT NULL,
	termination TEXT NOT NULL,
	config      JSONB
);
CREATE TABLE IF NOT EXISTS crawl_nodes (
	run_id        TEXT NOT NULL REFERENCES crawl_runs(run_id),
	node_id       TEXT NOT NULL,
	url           TEXT NOT NULL,
	status        INTEGER NOT NULL,
	title         TEXT,
	h1            TEXT,
	description   TEXT,
	canonical     TEXT,
	noindex       BOOLEAN NOT NULL DEFAULT FALSE,
	screenshot    TEXT,
	thumbnail     TEXT,
	redirected_to TEXT,
	error         TEXT,
	crawled_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, node_id)
);
CREATE TABLE IF NOT EXISTS crawl_edges (
	run_id     TEXT NOT NULL REFERENCES crawl_runs(run_id),
	source     TEXT NOT NULL,
	target     TEXT NOT NULL,
	target_url TEXT NOT NULL,
	kind       TEXT NOT NULL
);
`

// pgxExecutor is the slice of pgxpool.Pool the sink needs; pgxmock
// satisfies it in tests.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink persists crawl results into Postgres for shared or
// long-lived storage.
type PostgresSink struct {
	pool   pgxExecutor
	logger *zap.Logger
}

// NewPostgresSink connects using the DSN and applies the schema.
func NewPostgresSink(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s := NewPostgresSinkWithPool(pool, logger)
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return s, nil
}

// NewPostgresSinkWithPool wraps an existing pool; the caller owns schema
// setup. Tests inject a mock pool here.
func NewPostgresSinkWithPool(pool pgxExecutor, logger *zap.Logger) *PostgresSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSink{pool: pool, logger: logger}
}

// Persist writes the run, its nodes, and its edges.
func (s *PostgresSink) Persist(ctx context.Context, result *crawler.CrawlResult) error {
	cfgJSON, err := json.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	m := result.Meta
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_runs (run_id, start_url, started_at, finished_at, pages, edges, termination, config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.RunID, m.StartURL, m.StartedAt, m.FinishedAt, m.Pages, m.Edges, string(m.Termination), cfgJSON,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, n := range result.Nodes {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO crawl_nodes (run_id, node_id, url, status, title, h1, description, canonical,
			                          noindex, screenshot, thumbnail, redirected_to, error, crawled_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			m.RunID, n.ID, n.URL, n.Status, n.Title, n.H1, n.Description, n.Canonical,
			n.NoIndex, n.Screenshot, n.Thumbnail, n.RedirectedTo, n.Error, n.CrawledAt,
		); err != nil {
			return fmt.Errorf("insert node %s: %w", n.URL, err)
		}
	}

	for _, e := range result.Edges {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO crawl_edges (run_id, source, target, target_url, kind)
			 VALUES ($1, $2, $3, $4, $5)`,
			m.RunID, e.Source, e.Target, e.TargetURL, string(e.Kind),
		); err != nil {
			return fmt.Errorf("insert edge %s->%s: %w", e.Source, e.Target, err)
		}
	}

	s.logger.Info("crawl result stored",
		zap.String("run_id", m.RunID),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("edges", len(result.Edges)),
	)
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}
