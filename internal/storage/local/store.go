// Package local implements a filesystem document store.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/docscrawl/internal/crawler"
)

var _ crawler.DocumentStore = (*Store)(nil)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory; each site gets a subdirectory.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes documents below BaseDir/<site>/.
type Store struct {
	baseDir string
}

// New creates a filesystem-backed store, creating BaseDir when needed.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &Store{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// EnsureSite creates the site directory. It is idempotent.
func (s *Store) EnsureSite(_ context.Context, site string) error {
	dir, err := s.siteDir(site)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create site directory: %w", err)
	}
	return nil
}

// PutDocument writes data to <site>/<name> and returns a file:// URI. The
// content lands in a temporary file in the same directory first and is then
// renamed into place, so readers never observe a partial document and
// concurrent writers of one name leave exactly one complete version.
func (s *Store) PutDocument(_ context.Context, site, name string, data []byte) (string, error) {
	dir, err := s.siteDir(site)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	fullPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".doc-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return fmt.Sprintf("file://%s", fullPath), nil
}

// siteDir resolves the site directory and rejects paths outside baseDir.
func (s *Store) siteDir(site string) (string, error) {
	if strings.TrimSpace(site) == "" {
		return "", fmt.Errorf("site is required")
	}
	dir := filepath.Clean(filepath.Join(s.baseDir, site))
	if !strings.HasPrefix(dir, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return dir, nil
}
