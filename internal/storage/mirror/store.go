// Package mirror fans document writes out to a primary store and any number of
// best-effort secondaries.
package mirror

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/JakeFAU/docscrawl/internal/crawler"
)

var _ crawler.DocumentStore = (*Store)(nil)

// Store writes to primary first. Secondary failures are logged, never returned.
type Store struct {
	primary     crawler.DocumentStore
	secondaries []crawler.DocumentStore
	logger      *zap.Logger
}

// New builds a mirror. With no secondaries it behaves exactly like primary.
func New(primary crawler.DocumentStore, logger *zap.Logger, secondaries ...crawler.DocumentStore) (*Store, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{primary: primary, secondaries: secondaries, logger: logger}, nil
}

// EnsureSite prepares the site on every store. Only a primary failure is fatal.
func (s *Store) EnsureSite(ctx context.Context, site string) error {
	if err := s.primary.EnsureSite(ctx, site); err != nil {
		return fmt.Errorf("primary store: %w", err)
	}
	var errs *multierror.Error
	for _, secondary := range s.secondaries {
		if err := secondary.EnsureSite(ctx, site); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		s.logger.Warn("mirror ensure site failed", zap.String("site", site), zap.Error(err))
	}
	return nil
}

// PutDocument writes to the primary and returns its URI, then copies to every
// secondary.
func (s *Store) PutDocument(ctx context.Context, site, name string, data []byte) (string, error) {
	uri, err := s.primary.PutDocument(ctx, site, name, data)
	if err != nil {
		return "", fmt.Errorf("primary store: %w", err)
	}
	var errs *multierror.Error
	for _, secondary := range s.secondaries {
		if _, err := secondary.PutDocument(ctx, site, name, data); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		s.logger.Warn("mirror write failed",
			zap.String("site", site),
			zap.String("name", name),
			zap.Error(err),
		)
	}
	return uri, nil
}
