package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/pagescope/sitemapper/internal/crawler"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	start_url   TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	pages       INTEGER NOT NULL,
	edges       INTEGER NOT NULL,
	termination TEXT NOT NULL,
	config      TEXT
);
CREATE TABLE IF NOT EXISTS nodes (
	run_id        TEXT NOT NULL REFERENCES runs(run_id),
	node_id       TEXT NOT NULL,
	url           TEXT NOT NULL,
	status        INTEGER NOT NULL,
	title         TEXT,
	h1            TEXT,
	description   TEXT,
	canonical     TEXT,
	noindex       INTEGER NOT NULL DEFAULT 0,
	screenshot    TEXT,
	thumbnail     TEXT,
	redirected_to TEXT,
	error         TEXT,
	crawled_at    TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, node_id)
);
CREATE TABLE IF NOT EXISTS edges (
	run_id     TEXT NOT NULL REFERENCES runs(run_id),
	source     TEXT NOT NULL,
	target     TEXT NOT NULL,
	target_url TEXT NOT NULL,
	kind       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edges_run_source ON edges(run_id, source);
`

// SQLiteSink persists crawl results into a local SQLite database. Useful
// for repeated runs against the same site where history matters.
type SQLiteSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSink opens (creating if needed) the database at path and applies
// the schema. SQLite handles one writer at a time, so the pool is capped at
// a single connection.
func NewSQLiteSink(path string, logger *zap.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteSink{db: db, logger: logger}, nil
}

// Persist writes the run, its nodes, and its edges in one transaction.
func (s *SQLiteSink) Persist(ctx context.Context, result *crawler.CrawlResult) error {
	cfgJSON, err := json.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	m := result.Meta
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, start_url, started_at, finished_at, pages, edges, termination, config)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.StartURL, m.StartedAt, m.FinishedAt, m.Pages, m.Edges, string(m.Termination), string(cfgJSON),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (run_id, node_id, url, status, title, h1, description, canonical,
		                    noindex, screenshot, thumbnail, redirected_to, error, crawled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare node insert: %w", err)
	}
	defer nodeStmt.Close()
	for _, n := range result.Nodes {
		if _, err := nodeStmt.ExecContext(ctx,
			m.RunID, n.ID, n.URL, n.Status, n.Title, n.H1, n.Description, n.Canonical,
			n.NoIndex, n.Screenshot, n.Thumbnail, n.RedirectedTo, n.Error, n.CrawledAt,
		); err != nil {
			return fmt.Errorf("insert node %s: %w", n.URL, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO edges (run_id, source, target, target_url, kind) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range result.Edges {
		if _, err := edgeStmt.ExecContext(ctx,
			m.RunID, e.Source, e.Target, e.TargetURL, string(e.Kind),
		); err != nil {
			return fmt.Errorf("insert edge %s->%s: %w", e.Source, e.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit crawl result: %w", err)
	}
	s.logger.Info("crawl result stored",
		zap.String("run_id", m.RunID),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("edges", len(result.Edges)),
	)
	return nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
