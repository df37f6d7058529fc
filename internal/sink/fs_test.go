package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagescope/sitemapper/internal/crawler"
)

func sampleResult() *crawler.CrawlResult {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &crawler.CrawlResult{
		Meta: crawler.RunMeta{
			RunID:       "run-123",
			StartURL:    "https://site.test/",
			StartedAt:   now,
			FinishedAt:  now.Add(time.Minute),
			Pages:       2,
			Edges:       1,
			Termination: crawler.TerminationQuiescent,
		},
		Config: map[string]any{
			"auth": map[string]any{"password": "***"},
		},
		Nodes: []crawler.PageNode{
			{ID: "n1", URL: "https://site.test/", Status: 200, Title: "Home", CrawledAt: now},
			{ID: "n2", URL: "https://site.test/a", Status: 200, CrawledAt: now},
		},
		Edges: []crawler.Edge{
			{Source: "n1", Target: "n2", TargetURL: "https://site.test/a", Kind: crawler.EdgeInternal},
		},
	}
}

func TestFSSinkPersist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFSSink(dir, zap.NewNop())
	require.NoError(t, err)

	result := sampleResult()
	require.NoError(t, s.Persist(context.Background(), result))

	data, err := os.ReadFile(filepath.Join(dir, "crawl-run-123.json"))
	require.NoError(t, err)

	var got crawler.CrawlResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, result.Meta, got.Meta)
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Edges, 1)
	assert.Equal(t, "***", got.Config["auth"].(map[string]any)["password"],
		"persisted config carries redacted secrets only")
}

func TestFSSinkCreatesDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "out")
	_, err := NewFSSink(dir, zap.NewNop())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFSSinkCanceledContext(t *testing.T) {
	t.Parallel()

	s, err := NewFSSink(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Persist(ctx, sampleResult()))
}
