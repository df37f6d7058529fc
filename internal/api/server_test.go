package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagescope/sitemapper/internal/crawler"
)

type staticSource struct{ snap crawler.Snapshot }

func (s staticSource) Snapshot() crawler.Snapshot { return s.snap }

func newTestServer() *Server {
	return NewServer(staticSource{snap: crawler.Snapshot{
		RunID:      "run-42",
		Visited:    7,
		QueueDepth: 3,
		InFlight:   2,
		Nodes:      7,
		Edges:      12,
	}}, 0, zap.NewNop())
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestServer().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusReportsSnapshot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestServer().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap crawler.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "run-42", snap.RunID)
	assert.Equal(t, 7, snap.Visited)
	assert.Equal(t, 3, snap.QueueDepth)
	assert.Equal(t, 12, snap.Edges)
}

func TestMetricsExposed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestServer().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestServer().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
