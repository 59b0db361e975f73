// Package gcs provides a DocumentStore backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/docscrawl/internal/crawler"
)

var _ crawler.DocumentStore = (*Store)(nil)

const markdownContentType = "text/markdown; charset=utf-8"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name.
	Prefix string
}

// Store writes documents to <prefix>/<site>/<name> in a bucket.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// EnsureSite is a no-op; object stores have no directories.
func (s *Store) EnsureSite(_ context.Context, site string) error {
	if strings.TrimSpace(site) == "" {
		return fmt.Errorf("site is required")
	}
	return nil
}

// PutDocument uploads data and returns a gs:// URI.
func (s *Store) PutDocument(ctx context.Context, site, name string, data []byte) (string, error) {
	if strings.TrimSpace(site) == "" || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("site and name are required")
	}
	object := s.ObjectName(site, name)
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = markdownContentType
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// ObjectName returns the object key used for a document.
func (s *Store) ObjectName(site, name string) string {
	return path.Join(s.prefix, site, name)
}
