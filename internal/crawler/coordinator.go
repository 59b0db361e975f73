package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/docscrawl/internal/clock/system"
	"github.com/JakeFAU/docscrawl/internal/metrics"
)

// Components bundles the collaborators shared by every Coordinator.
type Components struct {
	Fetcher Fetcher
	Content ContentExtractor
	Links   LinkExtractor
	Store   DocumentStore
	Clock   Clock
}

func (c Components) validate() error {
	switch {
	case c.Fetcher == nil:
		return errors.New("fetcher is required")
	case c.Content == nil:
		return errors.New("content extractor is required")
	case c.Links == nil:
		return errors.New("link extractor is required")
	case c.Store == nil:
		return errors.New("document store is required")
	}
	return nil
}

// Coordinator crawls one seed URL: it owns the frontier and visited set for the
// run, starts the workers, waits for the frontier to drain and stops them.
type Coordinator struct {
	seed   SiteSeed
	domain string
	cfg    Config
	deps   Components
	logger *zap.Logger

	counters siteCounters

	mu        sync.Mutex
	state     SiteState
	visited   *VisitedSet
	started   time.Time
	elapsed   time.Duration
	errorText string
}

// NewCoordinator builds a Coordinator for a single seed.
func NewCoordinator(seed SiteSeed, cfg Config, deps Components, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	domain := DomainDirName(seed.URL)
	return &Coordinator{
		seed:   seed,
		domain: domain,
		cfg:    cfg.withDefaults(),
		deps:   deps,
		logger: logger.With(zap.String("site", seed.Site), zap.String("domain", domain)),
		state:  SiteStateInit,
	}
}

// Domain returns the sanitized output directory name for this site.
func (c *Coordinator) Domain() string {
	return c.domain
}

// Run executes the crawl and blocks until it finishes. Page-level failures are
// logged and counted; the only error returned for a started crawl is failure
// to create the output directory or cancellation of ctx.
func (c *Coordinator) Run(ctx context.Context) (SiteSummary, error) {
	if err := c.deps.validate(); err != nil {
		c.fail(err)
		return c.Summary(), err
	}
	c.mu.Lock()
	c.started = c.deps.Clock.Now()
	c.mu.Unlock()

	if err := c.deps.Store.EnsureSite(ctx, c.domain); err != nil {
		err = fmt.Errorf("create output directory %s: %w", c.domain, err)
		c.fail(err)
		c.logger.Error("crawl aborted", zap.Error(err))
		return c.Summary(), err
	}

	c.setState(SiteStateSeeding)
	frontier := NewFrontier()
	visited := NewVisitedSet()
	c.mu.Lock()
	c.visited = visited
	c.mu.Unlock()
	frontier.Enqueue(CrawlTask{URL: c.seed.URL, Depth: 0})

	c.setState(SiteStateRunning)
	c.logger.Info("starting crawl",
		zap.String("seed", c.seed.URL),
		zap.Int("workers", c.cfg.Workers),
		zap.Int("concurrency", c.cfg.Concurrency),
		zap.Int("max_depth", c.cfg.MaxDepth),
	)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	permits := semaphore.NewWeighted(int64(c.cfg.Concurrency))
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		w := &worker{
			domain:    c.domain,
			siteLabel: metrics.SanitizeSite(c.seed.URL),
			cfg:       c.cfg,
			frontier:  frontier,
			visited:   visited,
			permits:   permits,
			deps:      c.deps,
			counters:  &c.counters,
			logger:    c.logger.Named("worker").With(zap.Int("worker", i)),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(workerCtx)
		}()
	}

	joinErr := frontier.Join(ctx)

	c.setState(SiteStateDraining)
	cancel()
	frontier.Close()
	wg.Wait()
	metrics.ObserveFrontier(metrics.SanitizeSite(c.seed.URL), 0)

	c.finish()
	summary := c.Summary()
	c.logger.Info("crawl finished",
		zap.Int("visited", summary.Visited),
		zap.Int64("written", summary.Written),
		zap.Int64("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	if joinErr != nil {
		return summary, fmt.Errorf("crawl %s: %w", c.seed.URL, joinErr)
	}
	return summary, nil
}

// Summary returns the current view of the run. It is safe to call while the
// crawl is in progress.
func (c *Coordinator) Summary() SiteSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	visited := 0
	if c.visited != nil {
		visited = c.visited.Len()
	}
	elapsed := c.elapsed
	if elapsed == 0 && !c.started.IsZero() && c.state != SiteStateDone && c.state != SiteStateFailed {
		elapsed = c.deps.Clock.Now().Sub(c.started)
	}
	return SiteSummary{
		Site:      c.seed.Site,
		Seed:      c.seed.URL,
		Domain:    c.domain,
		State:     c.state,
		Visited:   visited,
		Written:   c.counters.written.Load(),
		Failed:    c.counters.failed.Load(),
		Elapsed:   elapsed,
		ErrorText: c.errorText,
	}
}

func (c *Coordinator) setState(state SiteState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Coordinator) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = SiteStateDone
	c.elapsed = c.deps.Clock.Now().Sub(c.started)
}

func (c *Coordinator) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = SiteStateFailed
	c.errorText = err.Error()
	if !c.started.IsZero() {
		c.elapsed = c.deps.Clock.Now().Sub(c.started)
	}
}
