package crawler

import (
	"fmt"
	"time"

	"github.com/pagescope/sitemapper/internal/urlutil"
)

// Config holds the settings for a single crawl run. It is constructed once
// from the application configuration and passed to the engine; the engine
// keeps no other mutable configuration state.
type Config struct {
	StartURL       string
	AllowedDomains []string
	UserAgent      string
	MaxPages       int
	Concurrency    int
	// Delay is the per-host politeness interval between fetches.
	Delay         time.Duration
	RespectRobots bool
}

// Validate checks for configuration combinations that cannot produce a
// meaningful run.
func (c Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("start URL must be set")
	}
	if urlutil.Host(c.StartURL) == "" {
		return fmt.Errorf("start URL %q has no host", c.StartURL)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be > 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be >= 0")
	}
	return nil
}

// domains returns the allow-list, defaulting to the seed's host so a bare
// start URL confines the crawl to its own site.
func (c Config) domains() []string {
	if len(c.AllowedDomains) > 0 {
		return c.AllowedDomains
	}
	if h := urlutil.Host(c.StartURL); h != "" {
		return []string{h}
	}
	return nil
}
