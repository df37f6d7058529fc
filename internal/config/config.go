// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl engine.
type CrawlerConfig struct {
	StartURL       string   `mapstructure:"start_url"`
	AllowedDomains []string `mapstructure:"allowed_domains"`
	MaxPages       int      `mapstructure:"max_pages"`
	Concurrency    int      `mapstructure:"concurrency"`
	DelayMs        int      `mapstructure:"delay_ms"`
	RespectRobots  bool     `mapstructure:"respect_robots"`
	UserAgent      string   `mapstructure:"user_agent"`
}

// FetcherConfig selects and tunes the page fetcher.
type FetcherConfig struct {
	Headless          bool   `mapstructure:"headless"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	ScreenshotDir     string `mapstructure:"screenshot_dir"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
}

// AuthConfig configures pre-crawl authentication.
type AuthConfig struct {
	Mode           string `mapstructure:"mode"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	LoginURL       string `mapstructure:"login_url"`
	UsernameField  string `mapstructure:"username_field"`
	PasswordField  string `mapstructure:"password_field"`
	SubmitSelector string `mapstructure:"submit_selector"`
}

// OutputConfig selects the result sink.
type OutputConfig struct {
	Format      string `mapstructure:"format"`
	Dir         string `mapstructure:"dir"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Callers validate after
// applying any flag overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEMAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.max_pages", 100)
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.delay_ms", 0)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.user_agent", "sitemapper/1.0")
	v.SetDefault("fetcher.headless", true)
	v.SetDefault("fetcher.nav_timeout_seconds", 45)
	v.SetDefault("fetcher.timeout_seconds", 30)
	v.SetDefault("auth.mode", "none")
	v.SetDefault("output.format", "json")
	v.SetDefault("output.dir", "sitemap")
	v.SetDefault("output.sqlite_path", "sitemap/crawls.db")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.StartURL == "" {
		return fmt.Errorf("crawler.start_url is required")
	}
	if u, err := url.Parse(c.Crawler.StartURL); err != nil || u.Host == "" {
		return fmt.Errorf("crawler.start_url must be an absolute URL")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	switch c.Auth.Mode {
	case "", "none":
	case "basic":
		if c.Auth.Username == "" {
			return fmt.Errorf("auth.username must be set for basic auth")
		}
	case "form":
		if c.Auth.LoginURL == "" || c.Auth.UsernameField == "" ||
			c.Auth.PasswordField == "" || c.Auth.SubmitSelector == "" {
			return fmt.Errorf("auth.login_url and form selectors must be set for form auth")
		}
	default:
		return fmt.Errorf("auth.mode must be one of none, basic, form")
	}
	switch c.Output.Format {
	case "json", "sqlite", "postgres":
	default:
		return fmt.Errorf("output.format must be one of json, sqlite, postgres")
	}
	if c.Output.Format == "postgres" && c.Output.PostgresDSN == "" {
		return fmt.Errorf("output.postgres_dsn must be set for postgres output")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	return nil
}

// Delay converts the configured per-host delay into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetcher.NavTimeoutSeconds) * time.Second
}

// RequestTimeout converts the plain-fetcher timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// Redacted returns the configuration as a map suitable for embedding in
// persisted crawl results. Credentials and DSNs are masked, never stored.
func (c Config) Redacted() map[string]any {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	return map[string]any{
		"crawler": map[string]any{
			"start_url":       c.Crawler.StartURL,
			"allowed_domains": c.Crawler.AllowedDomains,
			"max_pages":       c.Crawler.MaxPages,
			"concurrency":     c.Crawler.Concurrency,
			"delay_ms":        c.Crawler.DelayMs,
			"respect_robots":  c.Crawler.RespectRobots,
			"user_agent":      c.Crawler.UserAgent,
		},
		"fetcher": map[string]any{
			"headless":            c.Fetcher.Headless,
			"nav_timeout_seconds": c.Fetcher.NavTimeoutSeconds,
			"screenshot_dir":      c.Fetcher.ScreenshotDir,
			"timeout_seconds":     c.Fetcher.TimeoutSeconds,
		},
		"auth": map[string]any{
			"mode":     c.Auth.Mode,
			"username": c.Auth.Username,
			"password": mask(c.Auth.Password),
		},
		"output": map[string]any{
			"format":       c.Output.Format,
			"dir":          c.Output.Dir,
			"sqlite_path":  c.Output.SQLitePath,
			"postgres_dsn": mask(c.Output.PostgresDSN),
		},
	}
}
