// Package headless fetches pages with a real browser via chromedp. All
// fetches share one authenticated browser context; each fetch runs in its
// own tab so navigations do not block one another.
package headless

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pagescope/sitemapper/internal/crawler"
	"github.com/pagescope/sitemapper/internal/fetcher/extract"
	"github.com/pagescope/sitemapper/internal/urlutil"
)

// Auth modes accepted by Config.Auth.Mode.
const (
	AuthNone  = "none"
	AuthBasic = "basic"
	AuthForm  = "form"
)

// AuthConfig establishes the session once before crawling begins. Basic
// credentials ride on every navigation as an Authorization header; form
// login performs one scripted login so its cookies persist in the shared
// browser context.
type AuthConfig struct {
	Mode           string
	Username       string
	Password       string
	LoginURL       string
	UsernameField  string
	PasswordField  string
	SubmitSelector string
}

// Config controls the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// ScreenshotDir enables full-page and viewport capture when non-empty.
	ScreenshotDir string
	Auth          AuthConfig
}

// Fetcher implements crawler.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	extraHeaders  network.Headers
}

// NewFetcher builds the fetcher; the browser is launched by Start.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// Start launches the browser, warms it up, and establishes the configured
// authentication. Any failure here is fatal to the run.
func (f *Fetcher) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if f.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("chromedp warmup: %w", err)
	}
	f.allocCancel = allocCancel
	f.browserCtx = browserCtx
	f.browserCancel = browserCancel

	if f.cfg.ScreenshotDir != "" {
		if err := os.MkdirAll(f.cfg.ScreenshotDir, 0o750); err != nil {
			return fmt.Errorf("create screenshot dir: %w", err)
		}
	}

	switch f.cfg.Auth.Mode {
	case "", AuthNone:
	case AuthBasic:
		token := base64.StdEncoding.EncodeToString(
			[]byte(f.cfg.Auth.Username + ":" + f.cfg.Auth.Password))
		f.extraHeaders = network.Headers{"Authorization": "Basic " + token}
	case AuthForm:
		if err := f.formLogin(); err != nil {
			return fmt.Errorf("form login: %w", err)
		}
	default:
		return fmt.Errorf("unknown auth mode %q", f.cfg.Auth.Mode)
	}
	return nil
}

// formLogin navigates the login page once in the shared browser context so
// the session cookies apply to every subsequent tab.
func (f *Fetcher) formLogin() error {
	a := f.cfg.Auth
	if a.LoginURL == "" || a.UsernameField == "" || a.PasswordField == "" || a.SubmitSelector == "" {
		return errors.New("login URL, field selectors, and submit selector are required")
	}
	loginCtx, cancel := context.WithTimeout(f.browserCtx, f.cfg.NavigationTimeout)
	defer cancel()
	return chromedp.Run(loginCtx,
		chromedp.Navigate(a.LoginURL),
		chromedp.WaitVisible(a.PasswordField, chromedp.ByQuery),
		chromedp.SendKeys(a.UsernameField, a.Username, chromedp.ByQuery),
		chromedp.SendKeys(a.PasswordField, a.Password, chromedp.ByQuery),
		chromedp.Click(a.SubmitSelector, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Close tears down the browser and allocator.
func (f *Fetcher) Close(context.Context) error {
	if f.browserCancel != nil {
		f.browserCancel()
	}
	if f.allocCancel != nil {
		f.allocCancel()
	}
	return nil
}

// Fetch navigates a fresh tab inside the shared session and returns the
// page's metadata, outbound links, and screenshot references. Navigation
// and timeout failures are returned as errors so the retry wrapper can act.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	if f.browserCtx == nil {
		return crawler.FetchResult{}, errors.New("fetcher not started")
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	var (
		html     string
		finalURL string
		thumb    []byte
		full     []byte
	)
	tasks := chromedp.Tasks{
		network.Enable(),
	}
	if f.cfg.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(f.cfg.UserAgent))
	}
	if len(f.extraHeaders) > 0 {
		tasks = append(tasks, network.SetExtraHTTPHeaders(f.extraHeaders))
	}
	tasks = append(tasks,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if f.cfg.ScreenshotDir != "" {
		tasks = append(tasks,
			chromedp.CaptureScreenshot(&thumb),
			chromedp.FullScreenshot(&full, 80),
		)
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return crawler.FetchResult{}, fmt.Errorf("navigate %s: %w", rawURL, err)
	}

	status, responseURL := meta.snapshot()
	if status == 0 {
		status = 200
	}
	if responseURL == "" {
		responseURL = finalURL
	}
	if responseURL == "" {
		responseURL = rawURL
	}

	pageMeta, links, err := extract.Parse(html, responseURL)
	if err != nil {
		return crawler.FetchResult{}, fmt.Errorf("parse %s: %w", rawURL, err)
	}

	result := crawler.FetchResult{
		URL:         rawURL,
		FinalURL:    responseURL,
		Status:      status,
		Title:       pageMeta.Title,
		H1:          pageMeta.H1,
		Description: pageMeta.Description,
		Canonical:   pageMeta.Canonical,
		NoIndex:     pageMeta.NoIndex,
		Links:       links,
		HTML:        html,
	}
	if f.cfg.ScreenshotDir != "" {
		result.Screenshot, result.Thumbnail = f.saveScreenshots(rawURL, full, thumb)
	}
	return result, nil
}

// saveScreenshots writes the captured images; failures degrade to missing
// references rather than failing the fetch.
func (f *Fetcher) saveScreenshots(rawURL string, full, thumb []byte) (string, string) {
	id := urlutil.StableID(urlutil.Normalize(rawURL))
	var fullPath, thumbPath string
	if len(full) > 0 {
		fullPath = filepath.Join(f.cfg.ScreenshotDir, id+".png")
		if err := os.WriteFile(fullPath, full, 0o600); err != nil {
			f.logger.Warn("write screenshot", zap.String("url", rawURL), zap.Error(err))
			fullPath = ""
		}
	}
	if len(thumb) > 0 {
		thumbPath = filepath.Join(f.cfg.ScreenshotDir, id+"_thumb.png")
		if err := os.WriteFile(thumbPath, thumb, 0o600); err != nil {
			f.logger.Warn("write thumbnail", zap.String("url", rawURL), zap.Error(err))
			thumbPath = ""
		}
	}
	return fullPath, thumbPath
}

// responseMeta captures the document response status and URL from CDP
// network events; only the first document response counts.
type responseMeta struct {
	once   sync.Once
	mu     sync.Mutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.once.Do(func() {
		m.mu.Lock()
		m.status = int(resp.Response.Status)
		m.url = resp.Response.URL
		m.mu.Unlock()
	})
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.url
}

// forwardCancel propagates cancellation from the engine's context into the
// chromedp task context.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
