package crawler

import (
	"context"
	"time"
)

// FetchResult is everything a Fetcher learns from a single page navigation.
type FetchResult struct {
	URL         string
	FinalURL    string
	Status      int
	Title       string
	H1          string
	Description string
	Canonical   string
	NoIndex     bool
	Screenshot  string
	Thumbnail   string
	Links       []string
	HTML        string
}

// Fetcher navigates to a URL and returns page metadata plus raw outbound
// links. Implementations must return an error on network and timeout
// failures so the retry wrapper can act; HTTP error statuses (4xx/5xx) are
// results, not errors.
type Fetcher interface {
	// Start establishes the fetch session (browser launch, authentication).
	// A Start failure is fatal to the run.
	Start(ctx context.Context) error
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
	Close(ctx context.Context) error
}

// RobotsPolicy answers allow/deny queries against robots.txt.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// RetryPolicy decides whether a failed fetch attempt is retried and how
// long to wait before the next attempt.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Sink persists the final crawl graph and run metadata.
type Sink interface {
	Persist(ctx context.Context, result *CrawlResult) error
}
