// Package app builds the long-lived services a crawl run needs and releases
// them afterwards.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/JakeFAU/docscrawl/internal/clock/system"
	"github.com/JakeFAU/docscrawl/internal/config"
	"github.com/JakeFAU/docscrawl/internal/crawler"
	"github.com/JakeFAU/docscrawl/internal/extract"
	collyfetcher "github.com/JakeFAU/docscrawl/internal/fetcher/colly"
	"github.com/JakeFAU/docscrawl/internal/logging"
	pubsubpublisher "github.com/JakeFAU/docscrawl/internal/publisher/pubsub"
	"github.com/JakeFAU/docscrawl/internal/storage/gcs"
	"github.com/JakeFAU/docscrawl/internal/storage/local"
	"github.com/JakeFAU/docscrawl/internal/storage/mirror"
	"github.com/JakeFAU/docscrawl/internal/telemetry"
)

// Factories create cloud clients. Tests replace them to point at fakes.
type Factories struct {
	NewStorageClient func(ctx context.Context) (*storage.Client, error)
	NewPubSubClient  func(ctx context.Context, projectID string) (*pubsub.Client, error)
}

// DefaultFactories uses Application Default Credentials.
func DefaultFactories() Factories {
	return Factories{
		NewStorageClient: func(ctx context.Context) (*storage.Client, error) {
			return storage.NewClient(ctx)
		},
		NewPubSubClient: func(ctx context.Context, projectID string) (*pubsub.Client, error) {
			return pubsub.NewClient(ctx, projectID)
		},
	}
}

// App holds the services shared by every site in a run.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     crawler.DocumentStore
	Publisher crawler.Publisher

	closers []func() error
}

// New builds an App with DefaultFactories.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return NewWithFactories(ctx, cfg, logger, DefaultFactories())
}

// NewWithFactories builds an App. The local store under crawler.output_dir is
// always the primary; GCS and Pub/Sub are added when configured. On error every
// client created so far is closed.
func NewWithFactories(ctx context.Context, cfg config.Config, logger *zap.Logger, f Factories) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	primary, err := local.New(local.Config{BaseDir: cfg.Crawler.OutputDir})
	if err != nil {
		return nil, fmt.Errorf("init local store: %w", err)
	}
	a.Store = primary

	if cfg.Storage.GCSBucket != "" {
		client, err := f.NewStorageClient(ctx)
		if err != nil {
			a.closeQuietly()
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		remote, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
		if err != nil {
			a.closeQuietly()
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		store, err := mirror.New(primary, logger.Named("mirror"), remote)
		if err != nil {
			a.closeQuietly()
			return nil, fmt.Errorf("init mirror store: %w", err)
		}
		a.Store = store
		logger.Info("mirroring documents to gcs",
			zap.String("bucket", cfg.Storage.GCSBucket),
			zap.String("prefix", cfg.Storage.Prefix),
		)
	}

	if cfg.PubSub.TopicName != "" {
		tp, err := telemetry.InitTracerProvider(ctx, logging.ServiceName)
		if err != nil {
			a.closeQuietly()
			return nil, fmt.Errorf("init tracer provider: %w", err)
		}
		a.closers = append(a.closers, func() error { return tp.Shutdown(context.Background()) })

		client, err := f.NewPubSubClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.closeQuietly()
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		pub := pubsubpublisher.New(client)
		// Topics flush before the client closes.
		a.closers = append(a.closers, func() error { pub.Stop(); return nil })
		a.Publisher = pub
		logger.Info("publishing completion notices", zap.String("topic", cfg.PubSub.TopicName))
	}

	return a, nil
}

// Components assembles the crawl pipeline collaborators.
func (a *App) Components() crawler.Components {
	return crawler.Components{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent:   a.Config.Crawler.UserAgent,
			Timeout:     a.Config.Crawler.RequestTimeout,
			MaxBodySize: a.Config.Crawler.MaxBodySize,
		}),
		Content: extract.NewContentExtractor(),
		Links:   extract.NewLinkExtractor(a.Config.Crawler.BinaryExtensions),
		Store:   a.Store,
		Clock:   system.New(),
	}
}

// Close releases every client in reverse creation order.
func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}

func (a *App) closeQuietly() {
	if err := a.Close(); err != nil {
		a.Logger.Warn("close partially initialized services", zap.Error(err))
	}
}
