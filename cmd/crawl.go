package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagescope/sitemapper/internal/api"
	"github.com/pagescope/sitemapper/internal/config"
	"github.com/pagescope/sitemapper/internal/crawler"
	"github.com/pagescope/sitemapper/internal/fetcher/headless"
	"github.com/pagescope/sitemapper/internal/fetcher/plain"
	"github.com/pagescope/sitemapper/internal/logging"
	"github.com/pagescope/sitemapper/internal/progress"
	"github.com/pagescope/sitemapper/internal/progress/sinks"
	"github.com/pagescope/sitemapper/internal/sink"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Starts a crawl run",
		Long: `Crawls breadth-first from the configured start URL until the page
budget is exhausted or no reachable pages remain, then persists the node
and edge graph through the configured output sink.`,
		RunE: runCrawlCommand,
	}
	cmd.Flags().String("start-url", "", "start URL (overrides config)")
	cmd.Flags().Int("max-pages", 0, "page budget (overrides config)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg, err = applyOverrides(cmd, cfg); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := buildFetcher(cfg, logger)
	if err != nil {
		return err
	}
	resultSink, closeSink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("init progress metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("close progress hub", zap.Error(err))
		}
	}()

	engine := crawler.NewEngine(
		crawler.Config{
			StartURL:       cfg.Crawler.StartURL,
			AllowedDomains: cfg.Crawler.AllowedDomains,
			UserAgent:      cfg.Crawler.UserAgent,
			MaxPages:       cfg.Crawler.MaxPages,
			Concurrency:    cfg.Crawler.Concurrency,
			Delay:          cfg.Delay(),
			RespectRobots:  cfg.Crawler.RespectRobots,
		},
		fetcher,
		crawler.NewRobotsPolicy(cfg.Crawler.RespectRobots, cfg.Crawler.UserAgent, logger),
		crawler.NewExponentialRetryPolicy(),
		resultSink,
		hub,
		logger,
	)
	engine.SetRunConfig(cfg.Redacted())

	if cfg.Server.Enabled {
		server := api.NewServer(engine, cfg.Server.Port, logger)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown status server", zap.Error(err))
			}
		}()
	}

	result, err := engine.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	if result != nil {
		fmt.Printf("crawl %s: %d pages, %d edges (%s)\n",
			result.Meta.RunID, result.Meta.Pages, result.Meta.Edges, result.Meta.Termination)
	}
	return nil
}

func applyOverrides(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	if v, _ := cmd.Flags().GetString("start-url"); v != "" {
		cfg.Crawler.StartURL = v
	}
	if v, _ := cmd.Flags().GetInt("max-pages"); v > 0 {
		cfg.Crawler.MaxPages = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func buildFetcher(cfg config.Config, logger *zap.Logger) (crawler.Fetcher, error) {
	if cfg.Fetcher.Headless {
		return headless.NewFetcher(headless.Config{
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
			ScreenshotDir:     cfg.Fetcher.ScreenshotDir,
			Auth: headless.AuthConfig{
				Mode:           cfg.Auth.Mode,
				Username:       cfg.Auth.Username,
				Password:       cfg.Auth.Password,
				LoginURL:       cfg.Auth.LoginURL,
				UsernameField:  cfg.Auth.UsernameField,
				PasswordField:  cfg.Auth.PasswordField,
				SubmitSelector: cfg.Auth.SubmitSelector,
			},
		}, logger), nil
	}
	if cfg.Auth.Mode == "form" {
		return nil, errors.New("form auth requires the headless fetcher")
	}
	pf := plain.Config{
		UserAgent:      cfg.Crawler.UserAgent,
		RequestTimeout: cfg.RequestTimeout(),
		Concurrency:    cfg.Crawler.Concurrency,
	}
	if cfg.Auth.Mode == "basic" {
		pf.BasicAuthUser = cfg.Auth.Username
		pf.BasicAuthPass = cfg.Auth.Password
	}
	fetcher, err := plain.NewFetcher(pf, logger)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	return fetcher, nil
}

func buildSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Sink, func(), error) {
	noop := func() {}
	switch cfg.Output.Format {
	case "json":
		s, err := sink.NewFSSink(cfg.Output.Dir, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("init json sink: %w", err)
		}
		return s, noop, nil
	case "sqlite":
		s, err := sink.NewSQLiteSink(cfg.Output.SQLitePath, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("init sqlite sink: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("close sqlite sink", zap.Error(err))
			}
		}, nil
	case "postgres":
		s, err := sink.NewPostgresSink(ctx, cfg.Output.PostgresDSN, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("init postgres sink: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown output format %q", cfg.Output.Format)
	}
}
