package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveFetch(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(crawlerPagesTotal.WithLabelValues("docs_example_com", "ok"))
	ObserveFetch("docs_example_com", "ok", 512, 20*time.Millisecond)
	ObserveFetch("docs_example_com", "ok", 0, 0)

	got := testutil.ToFloat64(crawlerPagesTotal.WithLabelValues("docs_example_com", "ok"))
	if got-before != 2 {
		t.Fatalf("expected 2 new page observations, got %f", got-before)
	}
	if bytes := testutil.ToFloat64(crawlerBytesTotal.WithLabelValues("docs_example_com")); bytes < 512 {
		t.Fatalf("expected at least 512 bytes recorded, got %f", bytes)
	}
}

func TestFrontierAndWorkerGauges(t *testing.T) {
	ObserveFrontier("gauge_site", 7)
	if got := testutil.ToFloat64(crawlerFrontierSize.WithLabelValues("gauge_site")); got != 7 {
		t.Fatalf("expected frontier gauge 7, got %f", got)
	}

	base := testutil.ToFloat64(crawlerActiveWorkers)
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if got := testutil.ToFloat64(crawlerActiveWorkers); got-base != 1 {
		t.Fatalf("expected active workers delta 1, got %f", got-base)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveFetch("handler_site", "http_error", 0, 0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "crawler_pages_total") {
		t.Fatal("expected crawler_pages_total in exposition")
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
