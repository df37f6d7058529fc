// Package sink persists completed crawl results. Each implementation
// satisfies crawler.Sink; the CLI picks one based on the configured
// output format.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pagescope/sitemapper/internal/crawler"
)

// FSSink writes the crawl result as a single JSON document under Dir.
type FSSink struct {
	dir    string
	logger *zap.Logger
}

// NewFSSink creates the output directory if needed.
func NewFSSink(dir string, logger *zap.Logger) (*FSSink, error) {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FSSink{dir: dir, logger: logger}, nil
}

// Persist writes crawl-<run_id>.json. The write is atomic with respect to
// readers: the document lands in a temp file first and is renamed into place.
func (s *FSSink) Persist(ctx context.Context, result *crawler.CrawlResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal crawl result: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("crawl-%s.json", result.Meta.RunID))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write crawl result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize crawl result: %w", err)
	}

	s.logger.Info("crawl result written",
		zap.String("path", path),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("edges", len(result.Edges)),
	)
	return nil
}
