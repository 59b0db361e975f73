package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/docscrawl/internal/crawler"
)

var _ crawler.LinkExtractor = (*LinkExtractor)(nil)

// DefaultBinaryExtensions lists path suffixes that are never crawled.
var DefaultBinaryExtensions = []string{".pdf", ".jpg", ".zip", ".png"}

// LinkExtractor lists same-host anchor targets of a page.
type LinkExtractor struct {
	binaryExt []string
}

// NewLinkExtractor builds a LinkExtractor. An empty list selects
// DefaultBinaryExtensions. Extensions match case-insensitively.
func NewLinkExtractor(binaryExtensions []string) *LinkExtractor {
	if len(binaryExtensions) == 0 {
		binaryExtensions = DefaultBinaryExtensions
	}
	exts := make([]string, 0, len(binaryExtensions))
	for _, ext := range binaryExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return &LinkExtractor{binaryExt: exts}
}

// Links returns the absolute form of every a[href] in body that stays on the
// host of finalURL, has no fragment and does not point at a binary file.
// Links keep document order and duplicates are not removed.
func (e *LinkExtractor) Links(body []byte, finalURL string) ([]string, error) {
	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		target, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if e.accept(base, target) {
			links = append(links, target.String())
		}
	})
	return links, nil
}

func (e *LinkExtractor) accept(base, target *url.URL) bool {
	scheme := strings.ToLower(target.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	if !strings.EqualFold(target.Host, base.Host) {
		return false
	}
	if strings.Contains(target.String(), "#") {
		return false
	}
	return !e.isBinary(target.Path)
}

func (e *LinkExtractor) isBinary(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range e.binaryExt {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
