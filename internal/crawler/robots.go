package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const robotsFetchTimeout = 10 * time.Second

// robotsEntry is the per-host cache record. A nil group means the host is
// unrestricted, either because robots.txt allowed everything or because the
// fetch failed and compliance degrades to permissive.
type robotsEntry struct {
	data *robotstxt.RobotsData
}

// RobotsEnforcer fetches, parses, and caches robots.txt per host. Fetch and
// parse failures are cached as allow-all so a broken host is never probed
// twice; robots compliance is a courtesy, not a fatal precondition.
type RobotsEnforcer struct {
	client    *http.Client
	cache     sync.Map // lowercased host -> *robotsEntry
	userAgent string
	logger    *zap.Logger
}

// NewRobotsPolicy returns a policy honoring the respect toggle: when off,
// every URL is allowed without any network access.
func NewRobotsPolicy(respect bool, userAgent string, logger *zap.Logger) RobotsPolicy {
	if !respect {
		return allowAllRobots{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsEnforcer{
		client:    &http.Client{Timeout: robotsFetchTimeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Allowed implements RobotsPolicy.
func (r *RobotsEnforcer) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	entry := r.load(ctx, parsed)
	if entry.data == nil {
		return true
	}
	group := entry.data.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (r *RobotsEnforcer) load(ctx context.Context, parsed *url.URL) *robotsEntry {
	hostKey := strings.ToLower(parsed.Host)
	if cached, ok := r.cache.Load(hostKey); ok {
		return cached.(*robotsEntry)
	}

	entry := r.fetch(ctx, parsed)
	actual, _ := r.cache.LoadOrStore(hostKey, entry)
	return actual.(*robotsEntry)
}

// fetch retrieves and parses robots.txt once. Any failure returns a
// permissive entry; the error is logged, never propagated.
func (r *RobotsEnforcer) fetch(ctx context.Context, parsed *url.URL) *robotsEntry {
	robotsURL := &url.URL{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   "/robots.txt",
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		r.logger.Warn("robots request build failed; allowing host",
			zap.String("host", parsed.Host), zap.Error(err))
		return &robotsEntry{}
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("robots fetch failed; allowing host",
			zap.String("host", parsed.Host), zap.Error(err))
		return &robotsEntry{}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("robots returned non-200; allowing host",
			zap.String("host", parsed.Host), zap.Int("status", resp.StatusCode))
		return &robotsEntry{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		r.logger.Warn("robots body read failed; allowing host",
			zap.String("host", parsed.Host), zap.Error(err))
		return &robotsEntry{}
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		r.logger.Warn("robots parse failed; allowing host",
			zap.String("host", parsed.Host), zap.Error(err))
		return &robotsEntry{}
	}
	return &robotsEntry{data: data}
}

type allowAllRobots struct{}

func (allowAllRobots) Allowed(context.Context, string) bool { return true }
