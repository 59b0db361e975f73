package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/docscrawl/internal/clock/system"
)

// completionNotice is published once per finished site so downstream indexers
// know a document tree is ready.
type completionNotice struct {
	RunID     string    `json:"run_id"`
	Site      string    `json:"site"`
	Seed      string    `json:"seed"`
	Domain    string    `json:"domain"`
	State     SiteState `json:"state"`
	Visited   int       `json:"visited"`
	Written   int64     `json:"written"`
	Failed    int64     `json:"failed"`
	ElapsedMs int64     `json:"elapsed_ms"`
	Error     string    `json:"error,omitempty"`
}

// Scheduler runs one Coordinator per seed URL, all concurrently.
type Scheduler struct {
	cfg          Config
	deps         Components
	publisher    Publisher
	runID        string
	logger       *zap.Logger
	coordinators []*Coordinator
}

// NewScheduler constructs a Scheduler for the given seeds. publisher may be nil.
func NewScheduler(
	cfg Config,
	seeds []SiteSeed,
	deps Components,
	publisher Publisher,
	ids IDGenerator,
	logger *zap.Logger,
) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("at least one seed URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	runID := ""
	if ids != nil {
		id, err := ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
		runID = id
	}
	logger = logger.With(zap.String("run_id", runID))

	s := &Scheduler{
		cfg:       cfg,
		deps:      deps,
		publisher: publisher,
		runID:     runID,
		logger:    logger,
	}
	for _, seed := range seeds {
		s.coordinators = append(s.coordinators,
			NewCoordinator(seed, cfg, deps, logger.Named("coordinator")))
	}
	return s, nil
}

// RunID identifies this scheduler run in logs and completion notices.
func (s *Scheduler) RunID() string {
	return s.runID
}

// Run crawls every site and blocks until all have finished. A site that fails
// to start is reported in its summary and does not affect the others; only
// cancellation of ctx is returned as an error.
func (s *Scheduler) Run(ctx context.Context) ([]SiteSummary, time.Duration, error) {
	start := s.deps.Clock.Now()
	s.logger.Info("scheduler starting", zap.Int("sites", len(s.coordinators)))

	summaries := make([]SiteSummary, len(s.coordinators))
	g, gctx := errgroup.WithContext(ctx)
	for i, coord := range s.coordinators {
		g.Go(func() error {
			summary, err := coord.Run(gctx)
			summaries[i] = summary
			s.notify(gctx, summary)
			if err != nil && ctx.Err() != nil {
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	elapsed := s.deps.Clock.Now().Sub(start)

	for _, summary := range summaries {
		s.logger.Info("site summary",
			zap.String("site", summary.Site),
			zap.String("seed", summary.Seed),
			zap.String("state", string(summary.State)),
			zap.Int("visited", summary.Visited),
			zap.Int64("written", summary.Written),
			zap.Duration("elapsed", summary.Elapsed),
		)
	}
	s.logger.Info("total execution time", zap.Duration("elapsed", elapsed))
	if err != nil {
		return summaries, elapsed, fmt.Errorf("scheduler run: %w", err)
	}
	return summaries, elapsed, nil
}

// Snapshot returns the live state of every site in configuration order.
func (s *Scheduler) Snapshot() []SiteSummary {
	out := make([]SiteSummary, 0, len(s.coordinators))
	for _, coord := range s.coordinators {
		out = append(out, coord.Summary())
	}
	return out
}

func (s *Scheduler) notify(ctx context.Context, summary SiteSummary) {
	if s.publisher == nil || s.cfg.Topic == "" {
		return
	}
	notice := completionNotice{
		RunID:     s.runID,
		Site:      summary.Site,
		Seed:      summary.Seed,
		Domain:    summary.Domain,
		State:     summary.State,
		Visited:   summary.Visited,
		Written:   summary.Written,
		Failed:    summary.Failed,
		ElapsedMs: summary.Elapsed.Milliseconds(),
		Error:     summary.ErrorText,
	}
	id, err := s.publisher.Publish(ctx, s.cfg.Topic, notice)
	if err != nil {
		s.logger.Warn("publish completion notice failed", zap.String("seed", summary.Seed), zap.Error(err))
		return
	}
	s.logger.Debug("completion notice published", zap.String("seed", summary.Seed), zap.String("message_id", id))
}
