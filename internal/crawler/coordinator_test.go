package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/docscrawl/internal/crawler"
	"github.com/JakeFAU/docscrawl/internal/extract"
	"github.com/JakeFAU/docscrawl/internal/storage/memory"
)

const seedURL = "https://docs.example.com/"

// page is a canned response for fakeFetcher.
type page struct {
	status    int
	body      string
	finalURL  string
	err       error
	truncated bool
}

// fakeFetcher serves canned pages and counts requests per URL.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]page
	calls map[string]int
	// block, when set, holds every Fetch until the context ends.
	block bool
}

func newFakeFetcher(pages map[string]page) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	f.mu.Lock()
	f.calls[rawURL]++
	p, ok := f.pages[rawURL]
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return crawler.FetchResponse{URL: rawURL}, ctx.Err()
	}
	if !ok {
		p = page{status: http.StatusNotFound}
	}
	if p.err != nil {
		return crawler.FetchResponse{URL: rawURL}, crawler.NewNetworkError(rawURL, p.err)
	}
	status := p.status
	if status == 0 {
		status = http.StatusOK
	}
	final := p.finalURL
	if final == "" {
		final = rawURL
	}
	resp := crawler.FetchResponse{
		URL:        rawURL,
		FinalURL:   final,
		StatusCode: status,
		Body:       []byte(p.body),
		Duration:   time.Millisecond,
		Truncated:  p.truncated,
	}
	if status < 200 || status > 299 {
		return resp, crawler.NewHTTPStatusError(rawURL, status)
	}
	return resp, nil
}

func (f *fakeFetcher) count(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var urls []string
	for u := range f.calls {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// failingStore wraps a memory store with injectable failures.
type failingStore struct {
	*memory.Store
	ensureErr error
	putErr    error
}

func (s *failingStore) EnsureSite(ctx context.Context, site string) error {
	if s.ensureErr != nil {
		return s.ensureErr
	}
	return s.Store.EnsureSite(ctx, site)
}

func (s *failingStore) PutDocument(ctx context.Context, site, name string, data []byte) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	return s.Store.PutDocument(ctx, site, name, data)
}

// fixedClock advances by one second per call.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func doc(body string) string {
	return "<html><body><nav>nav</nav><main>" + body + "</main></body></html>"
}

func components(fetcher crawler.Fetcher, store crawler.DocumentStore) crawler.Components {
	return crawler.Components{
		Fetcher: fetcher,
		Content: extract.NewContentExtractor(),
		Links:   extract.NewLinkExtractor(nil),
		Store:   store,
		Clock:   &fixedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func runCoordinator(t *testing.T, cfg crawler.Config, deps crawler.Components) (crawler.SiteSummary, error) {
	t.Helper()
	coord := crawler.NewCoordinator(crawler.SiteSeed{Site: "docs", URL: seedURL}, cfg, deps, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return coord.Run(ctx)
}

func TestCoordinatorDepthOneFollowsSameDomainLinks(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		seedURL: {body: doc(`<h1>Home</h1>
			<a href="/a">A</a>
			<a href="https://docs.example.com/b">B</a>
			<a href="https://other.example.com/c">C</a>`)},
		"https://docs.example.com/a":    {body: doc(`<p>A</p><a href="/deep">deep</a>`)},
		"https://docs.example.com/b":    {body: doc(`<p>B</p>`)},
		"https://docs.example.com/deep": {body: doc(`<p>too deep</p>`)},
	})
	store := memory.New()

	summary, err := runCoordinator(t, crawler.Config{MaxDepth: 1, Concurrency: 4, Workers: 4}, components(fetcher, store))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://docs.example.com/",
		"https://docs.example.com/a",
		"https://docs.example.com/b",
	}, fetcher.fetched())
	assert.Zero(t, fetcher.count("https://other.example.com/c"))
	assert.Zero(t, fetcher.count("https://docs.example.com/deep"))

	assert.Equal(t, []string{"a.md", "b.md", "index.md"}, store.Names("docs_example_com"))
	index, ok := store.Get("docs_example_com", "index.md")
	require.True(t, ok)
	assert.Contains(t, string(index), "# Home")
	assert.NotContains(t, string(index), "nav")

	assert.Equal(t, crawler.SiteStateDone, summary.State)
	assert.Equal(t, 3, summary.Visited)
	assert.EqualValues(t, 3, summary.Written)
	assert.EqualValues(t, 0, summary.Failed)
	assert.Equal(t, "docs_example_com", summary.Domain)
	assert.Positive(t, summary.Elapsed)
}

func TestCoordinatorSeed404(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		seedURL: {status: http.StatusNotFound, body: "missing"},
	})
	store := memory.New()

	summary, err := runCoordinator(t, crawler.Config{MaxDepth: 2, Concurrency: 2, Workers: 2}, components(fetcher, store))
	require.NoError(t, err)

	assert.True(t, store.HasSite("docs_example_com"))
	assert.Empty(t, store.Names("docs_example_com"))
	assert.Equal(t, crawler.SiteStateDone, summary.State)
	assert.Equal(t, 1, summary.Visited)
	assert.EqualValues(t, 1, summary.Failed)
	assert.EqualValues(t, 0, summary.Written)
}

func TestCoordinatorNetworkErrorIsContained(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		seedURL:                         {body: doc(`<a href="/down">down</a><a href="/up">up</a>`)},
		"https://docs.example.com/down": {err: errors.New("connection reset")},
		"https://docs.example.com/up":   {body: doc(`<p>up</p>`)},
	})
	store := memory.New()

	summary, err := runCoordinator(t, crawler.Config{MaxDepth: 1, Concurrency: 2, Workers: 2}, components(fetcher, store))
	require.NoError(t, err)

	assert.Equal(t, []string{"index.md", "up.md"}, store.Names("docs_example_com"))
	assert.EqualValues(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Visited)
}

func TestCoordinatorNoMainContentStillFollowsLinks(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		seedURL:                          {body: `<html><body><div><a href="/guide">Guide</a></div></body></html>`},
		"https://docs.example.com/guide": {body: `<html><body><article><p>Guide text</p></article></body></html>`},
	})
	store := memory.New()

	summary, err := runCoordinator(t, crawler.Config{MaxDepth: 1, Concurrency: 1, Workers: 1}, components(fetcher, store))
	require.NoError(t, err)

	assert.Equal(t, []string{"guide.md"}, store.Names("docs_example_com"))
	assert.Equal(t, 2, summary.Visited)
	assert.EqualValues(t, 1, summary.Written)
	assert.EqualValues(t, 0, summary.Failed)
}

func TestCoordinatorNeverExceedsMaxDepth(t *testing.T) {
	pages := map[string]page{}
	for i := 0; i < 6; i++ {
		u := seedURL
		if i > 0 {
			u = fmt.Sprintf("https://docs.example.com/p%d", i)
		}
		pages[u] = page{body: doc(fmt.Sprintf(`<p>%d</p><a href="/p%d">next</a>`, i, i+1))}
	}
	for _, depth := range []int{0, 2, 4} {
		t.Run(fmt.Sprintf("max_depth=%d", depth), func(t *testing.T) {
			f := newFakeFetcher(pages)
			store := memory.New()
			summary, err := runCoordinator(t, crawler.Config{MaxDepth: depth, Concurrency: 3, Workers: 3}, components(f, store))
			require.NoError(t, err)
			assert.Len(t, f.fetched(), depth+1)
			assert.Equal(t, depth+1, summary.Visited)
			assert.Zero(t, f.count(fmt.Sprintf("https://docs.example.com/p%d", depth+1)))
		})
	}
}

func TestCoordinatorDuplicateLinksFetchedOnce(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		seedURL:                      {body: doc(`<a href="/a">1</a><a href="/a">2</a><a href="/">self</a>`)},
		"https://docs.example.com/a": {body: doc(`<a href="/">home</a><p>A</p>`)},
	})
	store := memory.New()

	summary, err := runCoordinator(t, crawler.Config{MaxDepth: 3, Concurrency: 1, Workers: 1}, components(fetcher, store))
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.count(seedURL))
	assert.Equal(t, 1, fetcher.count("https://docs.example.com/a"))
	assert.Equal(t, 2, summary.Visited)
}

func TestCoordinatorRedirectMarksFinalURLVisited(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		seedURL: {body: doc(`<a href="/old">old</a><a href="/new">new</a>`)},
		"https://docs.example.com/old": {
			body:     doc(`<p>moved</p>`),
			finalURL: "https://docs.example.com/new",
		},
		"https://docs.example.com/new": {body: doc(`<p>moved</p>`)},
	})
	store := memory.New()

	summary, err := runCoordinator(t, crawler.Config{MaxDepth: 1, Concurrency: 1, Workers: 1}, components(fetcher, store))
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.count("https://docs.example.com/old"))
	assert.Zero(t, fetcher.count("https://docs.example.com/new"))
	// The document is named after the final URL.
	assert.Equal(t, []string{"index.md", "new.md"}, store.Names("docs_example_com"))
	assert.Equal(t, 3, summary.Visited)
}

func TestCoordinatorEnsureSiteFailureIsFatal(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{seedURL: {body: doc("x")}})
	store := &failingStore{Store: memory.New(), ensureErr: errors.New("read-only file system")}

	summary, err := runCoordinator(t, crawler.Config{MaxDepth: 1, Concurrency: 1, Workers: 1}, components(fetcher, store))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only file system")
	assert.Equal(t, crawler.SiteStateFailed, summary.State)
	assert.Contains(t, summary.ErrorText, "create output directory docs_example_com")
}

func TestCoordinatorWriteFailureCounted(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		seedURL:                      {body: doc(`<a href="/a">a</a>`)},
		"https://docs.example.com/a": {body: doc(`<p>A</p>`)},
	})
	store := &failingStore{Store: memory.New(), putErr: errors.New("disk full")}

	core, logs := observer.New(zap.WarnLevel)
	coord := crawler.NewCoordinator(crawler.SiteSeed{Site: "docs", URL: seedURL},
		crawler.Config{MaxDepth: 1, Concurrency: 1, Workers: 1},
		components(fetcher, store), zap.New(core))
	summary, err := coord.Run(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, summary.Failed)
	assert.EqualValues(t, 0, summary.Written)
	assert.Equal(t, 1, fetcher.count("https://docs.example.com/a"), "links are followed after a write failure")
	assert.Equal(t, 2, logs.FilterMessage("write document failed").Len())
}

func TestCoordinatorContextCanceled(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{seedURL: {body: doc("x")}})
	fetcher.block = true
	store := memory.New()
	coord := crawler.NewCoordinator(crawler.SiteSeed{Site: "docs", URL: seedURL},
		crawler.Config{MaxDepth: 1, Concurrency: 1, Workers: 2},
		components(fetcher, store), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := coord.Run(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return fetcher.count(seedURL) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop after cancel")
	}
	summary := coord.Summary()
	assert.Equal(t, crawler.SiteStateDone, summary.State)
	assert.Equal(t, 0, summary.Visited)
}

func TestCoordinatorMissingComponents(t *testing.T) {
	coord := crawler.NewCoordinator(crawler.SiteSeed{Site: "docs", URL: seedURL},
		crawler.Config{}, crawler.Components{}, nil)
	summary, err := coord.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, crawler.SiteStateFailed, summary.State)
	assert.Equal(t, "docs_example_com", coord.Domain())
}

func TestCoordinatorWarnsOnTruncatedBody(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		seedURL: {body: doc(`<p>partial</p>`), truncated: true},
	})
	store := memory.New()

	core, logs := observer.New(zap.WarnLevel)
	coord := crawler.NewCoordinator(crawler.SiteSeed{Site: "docs", URL: seedURL},
		crawler.Config{MaxDepth: 0, Concurrency: 1, Workers: 1},
		components(fetcher, store), zap.New(core))
	summary, err := coord.Run(context.Background())
	require.NoError(t, err)

	warnings := logs.FilterMessage("response body truncated at size limit").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, seedURL, warnings[0].ContextMap()["url"])
	assert.EqualValues(t, 1, summary.Written)
}
