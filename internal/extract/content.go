// Package extract turns fetched HTML into Markdown documents and crawlable links.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/JakeFAU/docscrawl/internal/crawler"
)

var _ crawler.ContentExtractor = (*ContentExtractor)(nil)

// MainContentSelectors is the fallback chain used to locate the main-content
// region. The first selector with a match wins.
var MainContentSelectors = []string{`[role="main"]`, "main", "article"}

// ContentExtractor converts the main-content region of a page to Markdown.
type ContentExtractor struct {
	selectors     []string
	policyPool    sync.Pool
	converterPool sync.Pool
}

// NewContentExtractor builds an extractor using MainContentSelectors.
func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{
		selectors: MainContentSelectors,
		policyPool: sync.Pool{
			New: func() any {
				policy := bluemonday.UGCPolicy()
				// Keep fenced code languages such as class="language-go".
				policy.AllowAttrs("class").OnElements("code", "pre")
				return policy
			},
		},
		converterPool: sync.Pool{
			New: func() any {
				return md.NewConverter("", true, &md.Options{HeadingStyle: "atx"})
			},
		},
	}
}

// Extract locates the main-content region of body and converts it to
// Markdown. ok is false when no region matches; the document is then empty.
func (e *ContentExtractor) Extract(body []byte, finalURL string) (crawler.Document, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Document{}, false, fmt.Errorf("parse html: %w", err)
	}

	region := e.mainRegion(doc)
	if region == nil {
		return crawler.Document{}, false, nil
	}
	raw, err := goquery.OuterHtml(region)
	if err != nil {
		return crawler.Document{}, false, fmt.Errorf("render main content: %w", err)
	}

	policy := e.policyPool.Get().(*bluemonday.Policy)
	clean := policy.Sanitize(raw)
	e.policyPool.Put(policy)

	converter := e.converterPool.Get().(*md.Converter)
	markdown, err := converter.ConvertString(clean)
	e.converterPool.Put(converter)
	if err != nil {
		return crawler.Document{}, false, fmt.Errorf("convert to markdown: %w", err)
	}

	return crawler.Document{
		Name:    crawler.URLToFilename(finalURL),
		Content: []byte(strings.TrimSpace(markdown) + "\n"),
	}, true, nil
}

func (e *ContentExtractor) mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, sel := range e.selectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}
