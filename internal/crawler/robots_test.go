package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRobotsPolicyDisabled(t *testing.T) {
	t.Parallel()

	policy := NewRobotsPolicy(false, "sitemapper-test", zap.NewNop())
	assert.True(t, policy.Allowed(context.Background(), "https://example.com/anything"))
}

func TestRobotsEnforcerAllowDeny(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	policy := NewRobotsPolicy(true, "sitemapper-test", zap.NewNop())
	ctx := context.Background()

	assert.True(t, policy.Allowed(ctx, srv.URL+"/public"))
	assert.False(t, policy.Allowed(ctx, srv.URL+"/private"))
	assert.False(t, policy.Allowed(ctx, srv.URL+"/private/inner"))
}

func TestRobotsEnforcerCachesPerHost(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches.Add(1)
			fmt.Fprint(w, "User-agent: *\nDisallow:\n")
		}
	}))
	defer srv.Close()

	policy := NewRobotsPolicy(true, "sitemapper-test", zap.NewNop())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.True(t, policy.Allowed(ctx, fmt.Sprintf("%s/page/%d", srv.URL, i)))
	}
	assert.Equal(t, int64(1), fetches.Load(), "robots.txt fetched once per host")
}

func TestRobotsEnforcerFailureIsPermissive(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	policy := NewRobotsPolicy(true, "sitemapper-test", zap.NewNop())
	ctx := context.Background()

	assert.True(t, policy.Allowed(ctx, srv.URL+"/page"))
	assert.True(t, policy.Allowed(ctx, srv.URL+"/other"))
	assert.Equal(t, int64(1), fetches.Load(), "failed hosts are cached, not re-probed")
}

func TestRobotsEnforcerNilLogger(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close()

	// The failure path logs; a nil logger must not panic there.
	policy := NewRobotsPolicy(true, "sitemapper-test", nil)
	assert.True(t, policy.Allowed(context.Background(), srv.URL+"/page"))
}

func TestRobotsEnforcerRejectsMalformed(t *testing.T) {
	t.Parallel()

	policy := NewRobotsPolicy(true, "sitemapper-test", zap.NewNop())
	assert.False(t, policy.Allowed(context.Background(), "not a url at %%"))
}
