package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResponse, error)
}

// ContentExtractor locates the main-content region of a page and converts it.
// ok is false when the page has no recognizable main-content region.
type ContentExtractor interface {
	Extract(html []byte, finalURL string) (doc Document, ok bool, err error)
}

// LinkExtractor lists the crawlable same-domain links of a page in document order.
type LinkExtractor interface {
	Links(html []byte, finalURL string) ([]string, error)
}

// DocumentStore persists converted documents under a per-site directory.
type DocumentStore interface {
	EnsureSite(ctx context.Context, site string) error
	PutDocument(ctx context.Context, site, name string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
