package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pagescope/sitemapper/internal/progress"
	"github.com/pagescope/sitemapper/internal/urlutil"
)

// Engine owns the crawl run: it seeds the frontier, supervises a fixed
// pool of workers, bounds in-flight fetches with a semaphore, and detects
// completion through an outstanding-work counter instead of polling. The
// counter covers every URL from enqueue to the end of link handling, so
// "counter at zero" is exactly the quiescence condition: frontier empty
// and no worker in flight.
type Engine struct {
	cfg     Config
	fetcher Fetcher
	robots  RobotsPolicy
	retry   RetryPolicy
	sink    Sink
	emitter progress.Emitter
	logger  *zap.Logger

	runID    uuid.UUID
	domains  *DomainPolicy
	frontier *frontier
	seen     *seenSet
	graph    *Graph
	slots    chan struct{}
	limiters sync.Map // host -> *rate.Limiter

	started     atomic.Int64 // budget claims; node count never exceeds MaxPages
	outstanding atomic.Int64 // enqueued URLs not yet fully processed

	done        chan struct{}
	finishOnce  sync.Once
	termination Termination

	runConfig map[string]any
}

// NewEngine wires a crawl run. The emitter and sink may be nil.
func NewEngine(
	cfg Config,
	fetcher Fetcher,
	robots RobotsPolicy,
	retry RetryPolicy,
	sink Sink,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	var em progress.Emitter = progress.Nop{}
	if emitter != nil {
		em = emitter
	}
	return &Engine{
		cfg:      cfg,
		fetcher:  fetcher,
		robots:   robots,
		retry:    retry,
		sink:     sink,
		emitter:  em,
		logger:   logger,
		runID:    uuid.New(),
		domains:  NewDomainPolicy(cfg.domains()),
		frontier: newFrontier(),
		seen:     newSeenSet(),
		graph:    NewGraph(),
		slots:    make(chan struct{}, cfg.Concurrency),
		done:     make(chan struct{}),
	}
}

// RunID identifies this run in progress events and persisted metadata.
func (e *Engine) RunID() string { return e.runID.String() }

// SetRunConfig attaches an already-redacted configuration document to the
// persisted result. Call before Run.
func (e *Engine) SetRunConfig(cfg map[string]any) { e.runConfig = cfg }

// Run executes the crawl to completion and persists the resulting graph.
// Per-page failures are converted into failed PageNodes; only configuration
// and fetch-session errors are returned.
func (e *Engine) Run(ctx context.Context) (*CrawlResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("crawl config: %w", err)
	}

	seed := urlutil.Normalize(e.cfg.StartURL)
	if !e.domains.Allows(seed) {
		return nil, fmt.Errorf("start URL %q is outside the allowed domains", seed)
	}

	// Session initialization is the one fatal failure mode: without a
	// browser session no page can be fetched.
	if err := e.fetcher.Start(ctx); err != nil {
		return nil, fmt.Errorf("start fetch session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.fetcher.Close(closeCtx); err != nil {
			e.logger.Warn("close fetch session", zap.Error(err))
		}
	}()

	startedAt := time.Now().UTC()
	e.emit(progress.Event{Stage: progress.StageRunStart, URL: seed})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The seed passes through the same robots gate as every discovered
	// link; a disallowed start path yields an empty graph, not a node.
	if e.robots.Allowed(runCtx, seed) {
		e.seen.MarkPending(seed)
		e.outstanding.Add(1)
		e.frontier.Push(seed)
	} else {
		metricRobotsDenied.Inc()
		e.emit(progress.Event{Stage: progress.StageSkip, URL: seed, Reason: progress.ReasonRobots})
		e.logger.Warn("start URL disallowed by robots.txt", zap.String("url", seed))
		e.finish(TerminationQuiescent)
	}

	g, workerCtx := errgroup.WithContext(runCtx)
	for i := 0; i < e.cfg.Concurrency; i++ {
		g.Go(func() error {
			e.worker(workerCtx)
			return nil
		})
	}

	select {
	case <-e.done:
	case <-runCtx.Done():
		e.finish(TerminationCanceled)
	}

	// e.done is closed here, so e.termination is final. On budget or
	// quiescent termination the workers already in flight are allowed to
	// finish their page; only an outside cancellation aborts them.
	if e.termination == TerminationCanceled {
		cancel()
	}
	e.frontier.Close()
	_ = g.Wait()
	cancel()

	nodes, edges := e.graph.Snapshot()
	result := &CrawlResult{
		Meta: RunMeta{
			RunID:       e.runID.String(),
			StartURL:    seed,
			StartedAt:   startedAt,
			FinishedAt:  time.Now().UTC(),
			Pages:       len(nodes),
			Edges:       len(edges),
			Termination: e.termination,
		},
		Config: e.runConfig,
		Nodes:  nodes,
		Edges:  edges,
	}

	e.emit(progress.Event{
		Stage: progress.StageRunDone,
		Dur:   result.Meta.FinishedAt.Sub(startedAt),
		Note:  string(e.termination),
	})
	e.logger.Info("crawl finished",
		zap.String("run_id", e.runID.String()),
		zap.Int("pages", len(nodes)),
		zap.Int("edges", len(edges)),
		zap.String("termination", string(e.termination)),
	)

	if e.sink != nil {
		persistCtx, persistCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer persistCancel()
		if err := e.sink.Persist(persistCtx, result); err != nil {
			return result, fmt.Errorf("persist crawl result: %w", err)
		}
	}
	return result, nil
}

// Snapshot reports live run state for the status endpoint.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		RunID:      e.runID.String(),
		Visited:    e.seen.VisitedCount(),
		QueueDepth: e.frontier.Len(),
		InFlight:   len(e.slots),
		Nodes:      e.graph.NodeCount(),
		Edges:      e.graph.EdgeCount(),
	}
}

func (e *Engine) finish(reason Termination) {
	e.finishOnce.Do(func() {
		e.termination = reason
		close(e.done)
	})
}

func (e *Engine) worker(ctx context.Context) {
	for {
		u, ok := e.frontier.Pop()
		if !ok {
			return
		}
		if ctx.Err() == nil {
			e.processURL(ctx, u)
		}
		if e.outstanding.Add(-1) == 0 {
			e.finish(TerminationQuiescent)
		}
	}
}

// processURL executes the full per-page pipeline: claim, budget check,
// concurrency slot, politeness, fetch with retries, node creation, and
// link handling. Every failure past the claim becomes data on the node;
// nothing propagates.
func (e *Engine) processURL(ctx context.Context, rawURL string) {
	if !e.seen.ClaimVisit(rawURL) {
		e.emit(progress.Event{Stage: progress.StageSkip, URL: rawURL, Reason: progress.ReasonDuplicate})
		return
	}
	if e.started.Add(1) > int64(e.cfg.MaxPages) {
		e.emit(progress.Event{Stage: progress.StageSkip, URL: rawURL, Reason: progress.ReasonBudget})
		e.finish(TerminationBudget)
		return
	}

	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-e.slots }()
	metricInFlight.Inc()
	defer metricInFlight.Dec()

	if err := e.waitPoliteness(ctx, rawURL); err != nil {
		return
	}

	e.emit(progress.Event{Stage: progress.StageFetchStart, URL: rawURL, Host: urlutil.Host(rawURL)})
	fetchStart := time.Now()
	res, err := e.fetchWithRetry(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			// Canceled mid-fetch: the run is over, record nothing.
			return
		}
		node := PageNode{
			ID:        urlutil.StableID(rawURL),
			URL:       rawURL,
			Status:    StatusFetchFailed,
			Error:     err.Error(),
			CrawledAt: time.Now().UTC(),
		}
		e.graph.AddNode(node)
		metricPages.WithLabelValues("failed").Inc()
		e.emit(progress.Event{
			Stage:  progress.StageFetchDone,
			URL:    rawURL,
			Host:   urlutil.Host(rawURL),
			Status: StatusFetchFailed,
			Dur:    time.Since(fetchStart),
			Note:   err.Error(),
		})
		e.logger.Warn("page failed after retries", zap.String("url", rawURL), zap.Error(err))
		return
	}

	node := e.buildNode(rawURL, res)
	e.graph.AddNode(node)
	metricPages.WithLabelValues("ok").Inc()

	e.handleLinks(ctx, node, res.Links)

	e.emit(progress.Event{
		Stage:      progress.StageFetchDone,
		URL:        rawURL,
		Host:       urlutil.Host(rawURL),
		Status:     node.Status,
		QueueDepth: e.frontier.Len(),
		Dur:        time.Since(fetchStart),
	})
}

func (e *Engine) buildNode(rawURL string, res FetchResult) PageNode {
	node := PageNode{
		ID:          urlutil.StableID(rawURL),
		URL:         rawURL,
		Status:      res.Status,
		Title:       res.Title,
		H1:          res.H1,
		Description: res.Description,
		Canonical:   res.Canonical,
		NoIndex:     res.NoIndex,
		Screenshot:  res.Screenshot,
		Thumbnail:   res.Thumbnail,
		CrawledAt:   time.Now().UTC(),
	}
	if res.FinalURL != "" {
		if final := urlutil.Normalize(res.FinalURL); final != rawURL {
			node.RedirectedTo = final
		}
	}
	return node
}

// handleLinks normalizes and classifies every discovered link, records an
// edge regardless of whether the target will be crawled, and enqueues
// internal, robots-allowed URLs that have not been seen.
func (e *Engine) handleLinks(ctx context.Context, node PageNode, links []string) {
	for _, link := range links {
		norm := urlutil.Normalize(link)
		if urlutil.Host(norm) == "" {
			// Malformed link: skip it, the page continues normally.
			continue
		}
		kind := EdgeExternal
		if e.domains.Allows(norm) {
			kind = EdgeInternal
		}
		e.graph.AddEdge(Edge{
			Source:    node.ID,
			Target:    urlutil.StableID(norm),
			TargetURL: norm,
			Kind:      kind,
		})
		metricEdges.WithLabelValues(string(kind)).Inc()

		if kind != EdgeInternal || e.seen.Seen(norm) {
			continue
		}
		if !e.robots.Allowed(ctx, norm) {
			metricRobotsDenied.Inc()
			e.emit(progress.Event{Stage: progress.StageSkip, URL: norm, Reason: progress.ReasonRobots})
			continue
		}
		if !e.seen.MarkPending(norm) {
			continue
		}
		e.outstanding.Add(1)
		e.frontier.Push(norm)
	}
}

// fetchWithRetry wraps one logical fetch in the retry policy. The last
// error is returned to the caller once attempts are exhausted.
func (e *Engine) fetchWithRetry(ctx context.Context, rawURL string) (FetchResult, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		res, err := e.fetcher.Fetch(ctx, rawURL)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil || !e.retry.ShouldRetry(err, attempt+1) {
			break
		}
		metricRetries.Inc()
		e.emit(progress.Event{Stage: progress.StageFetchRetry, URL: rawURL, Note: err.Error()})
		if serr := sleepContext(ctx, e.retry.Backoff(attempt)); serr != nil {
			break
		}
	}
	return FetchResult{}, lastErr
}

// waitPoliteness enforces the per-host delay between fetches.
func (e *Engine) waitPoliteness(ctx context.Context, rawURL string) error {
	if e.cfg.Delay <= 0 {
		return nil
	}
	host := urlutil.Host(rawURL)
	if host == "" {
		return nil
	}
	val, _ := e.limiters.LoadOrStore(host, rate.NewLimiter(rate.Every(e.cfg.Delay), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	return nil
}

func (e *Engine) emit(evt progress.Event) {
	evt.RunID = e.runID
	evt.TS = time.Now().UTC()
	e.emitter.Emit(evt)
}
