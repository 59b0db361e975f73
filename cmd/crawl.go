package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/docscrawl/internal/api"
	"github.com/JakeFAU/docscrawl/internal/config"
	"github.com/JakeFAU/docscrawl/internal/crawler"
	"github.com/JakeFAU/docscrawl/internal/id/uuid"
)

// newCrawlCmd creates the 'crawl' subcommand, which crawls every configured
// seed concurrently and exits when all sites are done.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every configured seed URL",
		Long: `Starts one crawl per seed URL listed under sites (or in the seeds file),
all in parallel. Each crawl follows same-host links up to crawler.max_depth and
writes one Markdown file per page that has a main-content region.`,
		RunE: runCrawlCommand,
	}
	cmd.Flags().Int("max-depth", 0, "override crawler.max_depth")
	cmd.Flags().Int("concurrency", 0, "override crawler.concurrency")
	cmd.Flags().Int("workers", 0, "override crawler.workers")
	cmd.Flags().String("output-dir", "", "override crawler.output_dir")
	cmd.Flags().String("metrics-addr", "", "override metrics.addr (status server)")
	return cmd
}

// applyFlagOverrides copies explicitly set crawl flags onto cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("max-depth") {
		cfg.Crawler.MaxDepth, err = flags.GetInt("max-depth")
	}
	if err == nil && flags.Changed("concurrency") {
		cfg.Crawler.Concurrency, err = flags.GetInt("concurrency")
	}
	if err == nil && flags.Changed("workers") {
		cfg.Crawler.Workers, err = flags.GetInt("workers")
	}
	if err == nil && flags.Changed("output-dir") {
		cfg.Crawler.OutputDir, err = flags.GetString("output-dir")
	}
	if err == nil && flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, err = flags.GetString("metrics-addr")
	}
	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config
	logger := appInstance.Logger

	scheduler, err := crawler.NewScheduler(
		cfg.CrawlConfig(),
		cfg.Seeds(),
		appInstance.Components(),
		appInstance.Publisher,
		uuid.New(),
		logger.Named("scheduler"),
	)
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	stopServer := startStatusServer(cmd.Context(), cfg.Metrics.Addr, scheduler, logger)
	defer stopServer()

	summaries, elapsed, err := scheduler.Run(cmd.Context())
	printSummaries(cmd, summaries, elapsed)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawler: %w", err)
	}

	logger.Info("Crawl command finished.", zap.String("run_id", scheduler.RunID()))
	return nil
}

// startStatusServer serves status routes while the crawl runs. The returned
// func stops the server and waits for it.
func startStatusServer(ctx context.Context, addr string, source api.StatusSource, logger *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}
	srvCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server := api.NewServer(source, logger.Named("api"))
		if err := server.ListenAndServe(srvCtx, addr); err != nil {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func printSummaries(cmd *cobra.Command, summaries []crawler.SiteSummary, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	for _, s := range summaries {
		if s.State == crawler.SiteStateFailed {
			fmt.Fprintf(out, "[!] %s (%s): failed: %s\n", s.Seed, s.Domain, s.ErrorText)
			continue
		}
		fmt.Fprintf(out, "[*] %s (%s): %d unique pages visited, %d documents written, %d failures in %s\n",
			s.Seed, s.Domain, s.Visited, s.Written, s.Failed, s.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "--- Total execution time: %s ---\n", elapsed)
}
