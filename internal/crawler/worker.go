package crawler

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/docscrawl/internal/metrics"
)

// siteCounters is shared by the workers of one Coordinator run.
type siteCounters struct {
	written atomic.Int64
	failed  atomic.Int64
}

// worker drains a frontier: fetch, extract, persist, enqueue new links.
type worker struct {
	domain    string
	siteLabel string
	cfg       Config
	frontier  *Frontier
	visited   *VisitedSet
	permits   *semaphore.Weighted
	deps      Components
	counters  *siteCounters
	logger    *zap.Logger
}

// run blocks until the frontier is closed or the context finishes.
func (w *worker) run(ctx context.Context) {
	for {
		task, err := w.frontier.Dequeue(ctx)
		if err != nil {
			return
		}
		w.handle(ctx, task)
		w.frontier.Done()
	}
}

func (w *worker) handle(ctx context.Context, task CrawlTask) {
	if task.Depth > w.cfg.MaxDepth {
		w.logger.Debug("task over max depth", zap.String("url", task.URL), zap.Int("depth", task.Depth))
		return
	}
	if err := w.permits.Acquire(ctx, 1); err != nil {
		return
	}
	defer w.permits.Release(1)

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	result := w.processPage(ctx, task)
	if task.Depth >= w.cfg.MaxDepth {
		return
	}
	enqueued := 0
	for _, link := range result.NewLinks {
		if w.visited.Contains(link) {
			continue
		}
		w.frontier.Enqueue(CrawlTask{URL: link, Depth: task.Depth + 1})
		enqueued++
	}
	if enqueued > 0 {
		metrics.ObserveFrontier(w.siteLabel, w.frontier.Len())
		w.logger.Debug("links enqueued",
			zap.String("url", result.FinalURL),
			zap.Int("depth", task.Depth+1),
			zap.Int("count", enqueued),
		)
	}
}

// processPage fetches one URL and persists its main content. Failures are
// logged and yield a result without links; they never propagate.
func (w *worker) processPage(ctx context.Context, task CrawlTask) PageResult {
	if w.visited.Contains(task.URL) {
		return PageResult{FinalURL: task.URL, Status: PageStatusSkipped}
	}

	resp, err := w.deps.Fetcher.Fetch(ctx, task.URL)
	if ctx.Err() != nil {
		return PageResult{FinalURL: task.URL, Status: PageStatusSkipped}
	}
	finalURL := resp.FinalURL
	if finalURL == "" {
		finalURL = task.URL
	}
	w.visited.Add(task.URL, finalURL)

	if err != nil {
		status := classifyFetchError(err)
		w.counters.failed.Add(1)
		metrics.ObserveFetch(w.siteLabel, string(status), len(resp.Body), resp.Duration)
		w.logger.Warn("fetch failed",
			zap.String("url", task.URL),
			zap.String("status", string(status)),
			zap.Int("status_code", resp.StatusCode),
			zap.Error(err),
		)
		return PageResult{FinalURL: finalURL, Status: status}
	}
	if resp.Truncated {
		w.logger.Warn("response body truncated at size limit",
			zap.String("url", finalURL),
			zap.Int("bytes", len(resp.Body)),
		)
	}
	w.logger.Debug("processing page",
		zap.String("url", finalURL),
		zap.Int("status_code", resp.StatusCode),
		zap.Int("depth", task.Depth),
	)

	status := w.persist(ctx, resp.Body, finalURL)
	metrics.ObserveFetch(w.siteLabel, string(status), len(resp.Body), resp.Duration)

	links, err := w.deps.Links.Links(resp.Body, finalURL)
	if err != nil {
		w.logger.Warn("link extraction failed", zap.String("url", finalURL), zap.Error(err))
	}
	return PageResult{
		FinalURL: finalURL,
		Status:   status,
		RawHTML:  resp.Body,
		NewLinks: links,
	}
}

func (w *worker) persist(ctx context.Context, body []byte, finalURL string) PageStatus {
	doc, ok, err := w.deps.Content.Extract(body, finalURL)
	if err != nil {
		w.logger.Warn("content extraction failed", zap.String("url", finalURL), zap.Error(err))
		return PageStatusNoMainContent
	}
	if !ok {
		w.logger.Warn("main content not found", zap.String("url", finalURL))
		return PageStatusNoMainContent
	}
	uri, err := w.deps.Store.PutDocument(ctx, w.domain, doc.Name, doc.Content)
	if err != nil {
		w.counters.failed.Add(1)
		w.logger.Warn("write document failed",
			zap.String("url", finalURL),
			zap.String("name", doc.Name),
			zap.Error(err),
		)
		return PageStatusOK
	}
	w.counters.written.Add(1)
	w.logger.Debug("document written", zap.String("url", finalURL), zap.String("uri", uri))
	return PageStatusOK
}
