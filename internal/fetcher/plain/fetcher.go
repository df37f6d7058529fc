// Package plain fetches pages over plain HTTP via Colly, without JavaScript
// execution. It is the fallback fetcher for runs where a headless browser
// is unavailable or unnecessary.
package plain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/pagescope/sitemapper/internal/crawler"
	"github.com/pagescope/sitemapper/internal/fetcher/extract"
)

// Config controls the plain fetcher.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	Concurrency    int
	// BasicAuthUser/BasicAuthPass ride on every request when set.
	BasicAuthUser string
	BasicAuthPass string
}

// Fetcher implements crawler.Fetcher with a clone-per-fetch Colly collector.
type Fetcher struct {
	cfg  Config
	base *colly.Collector
}

// NewFetcher constructs a configured Colly-based fetcher.
func NewFetcher(cfg Config, _ *zap.Logger) (*Fetcher, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	base := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       cfg.Concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)
	return &Fetcher{cfg: cfg, base: base}, nil
}

// Start implements crawler.Fetcher; plain HTTP needs no session warmup.
func (f *Fetcher) Start(context.Context) error { return nil }

// Close implements crawler.Fetcher.
func (f *Fetcher) Close(context.Context) error { return nil }

// Fetch retrieves one page. HTTP error statuses are returned as results;
// transport failures are returned as errors for the retry wrapper.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	collector := f.base.Clone()

	type outcome struct {
		status   int
		finalURL string
		body     []byte
		err      error
	}
	resultCh := make(chan outcome, 1)
	var once sync.Once
	send := func(o outcome) { once.Do(func() { resultCh <- o }) }

	collector.OnRequest(func(r *colly.Request) {
		if f.cfg.BasicAuthUser != "" {
			r.Headers.Set("Authorization", basicAuth(f.cfg.BasicAuthUser, f.cfg.BasicAuthPass))
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		send(outcome{
			status:   r.StatusCode,
			finalURL: r.Request.URL.String(),
			body:     append([]byte(nil), r.Body...),
		})
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Colly reports non-2xx statuses through OnError; a status on the
		// response means the server answered, which is a result for the
		// crawler, not a transport failure.
		if r != nil && r.StatusCode > 0 {
			send(outcome{
				status:   r.StatusCode,
				finalURL: r.Request.URL.String(),
				body:     append([]byte(nil), r.Body...),
			})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(outcome{err: err})
	})

	// Visit reports non-2xx statuses as errors, but the OnError callback
	// has already captured them as outcomes; prefer the outcome so HTTP
	// error pages become crawl results.
	visitErr := collector.Visit(rawURL)
	collector.Wait()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return crawler.FetchResult{}, res.err
		}
		if err := ctx.Err(); err != nil {
			return crawler.FetchResult{}, err
		}
		return f.buildResult(rawURL, res.status, res.finalURL, res.body)
	default:
		if visitErr != nil {
			return crawler.FetchResult{}, fmt.Errorf("visit %s: %w", rawURL, visitErr)
		}
		return crawler.FetchResult{}, errors.New("fetch produced no result")
	}
}

func (f *Fetcher) buildResult(rawURL string, status int, finalURL string, body []byte) (crawler.FetchResult, error) {
	html := string(body)
	meta, links, err := extract.Parse(html, finalURL)
	if err != nil {
		return crawler.FetchResult{}, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return crawler.FetchResult{
		URL:         rawURL,
		FinalURL:    finalURL,
		Status:      status,
		Title:       meta.Title,
		H1:          meta.H1,
		Description: meta.Description,
		Canonical:   meta.Canonical,
		NoIndex:     meta.NoIndex,
		Links:       links,
		HTML:        html,
	}, nil
}

func basicAuth(user, pass string) string {
	req, _ := http.NewRequest(http.MethodGet, "http://localhost", nil)
	req.SetBasicAuth(user, pass)
	return req.Header.Get("Authorization")
}
