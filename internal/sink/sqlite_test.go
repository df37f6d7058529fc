package sink

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteSinkPersistRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawls.db")
	s, err := NewSQLiteSink(path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	result := sampleResult()
	require.NoError(t, s.Persist(context.Background(), result))

	var termination, startURL string
	row := s.db.QueryRow(`SELECT termination, start_url FROM runs WHERE run_id = ?`, "run-123")
	require.NoError(t, row.Scan(&termination, &startURL))
	assert.Equal(t, "quiescent", termination)
	assert.Equal(t, "https://site.test/", startURL)

	var nodeCount int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM nodes WHERE run_id = ?`, "run-123").Scan(&nodeCount))
	assert.Equal(t, 2, nodeCount)

	var edgeCount int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM edges WHERE run_id = ?`, "run-123").Scan(&edgeCount))
	assert.Equal(t, 1, edgeCount)
}

func TestSQLiteSinkDuplicateRunFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawls.db")
	s, err := NewSQLiteSink(path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	result := sampleResult()
	require.NoError(t, s.Persist(context.Background(), result))
	require.Error(t, s.Persist(context.Background(), result), "run IDs are unique")
}

func TestSQLiteSinkReopensExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawls.db")

	first, err := NewSQLiteSink(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Persist(context.Background(), sampleResult()))
	require.NoError(t, first.Close())

	second, err := NewSQLiteSink(path, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count))
	assert.Equal(t, 1, count, "history survives reopen")
}
