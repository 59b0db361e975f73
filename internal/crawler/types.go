// Package crawler defines core types shared across the crawl pipeline.
package crawler

import (
	"time"
)

// CrawlTask is one unit of frontier work: a URL discovered at a given depth.
type CrawlTask struct {
	URL   string
	Depth int
}

// PageStatus classifies the outcome of processing a single page.
type PageStatus string

// Page outcomes recorded by workers.
const (
	PageStatusOK            PageStatus = "ok"
	PageStatusHTTPError     PageStatus = "http_error"
	PageStatusNetworkError  PageStatus = "network_error"
	PageStatusNoMainContent PageStatus = "no_main_content"
	PageStatusSkipped       PageStatus = "skipped"
)

// PageResult is the transient outcome of fetching and extracting one page.
type PageResult struct {
	FinalURL string
	Status   PageStatus
	RawHTML  []byte
	NewLinks []string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	// Truncated reports that Body stopped at the fetcher's size limit.
	Truncated  bool
}

// Document is a converted page ready to be persisted.
type Document struct {
	Name    string
	Content []byte
}

// SiteState tracks the lifecycle of one Coordinator run.
type SiteState string

// Coordinator lifecycle states.
const (
	SiteStateInit     SiteState = "init"
	SiteStateSeeding  SiteState = "seeding"
	SiteStateRunning  SiteState = "running"
	SiteStateDraining SiteState = "draining"
	SiteStateDone     SiteState = "done"
	SiteStateFailed   SiteState = "failed"
)

// SiteSummary is reported once a Coordinator finishes.
type SiteSummary struct {
	Site      string        `json:"site"`
	Seed      string        `json:"seed"`
	Domain    string        `json:"domain"`
	State     SiteState     `json:"state"`
	Visited   int           `json:"visited"`
	Written   int64         `json:"written"`
	Failed    int64         `json:"failed"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	ErrorText string        `json:"error,omitempty"`
}

// SiteSeed pairs a seed URL with the site group it was configured under.
type SiteSeed struct {
	Site string
	URL  string
}
