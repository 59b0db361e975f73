package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

// DocumentExt is appended to every derived document filename.
const DocumentExt = ".md"

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// URLToFilename derives the document filename for a page from its URL path.
// The result only contains [A-Za-z0-9_.-] and always ends in DocumentExt.
// Distinct URLs may map to the same name; the later write wins.
func URLToFilename(rawURL string) string {
	var p string
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		p = "index"
	}
	name := invalidFilenameChars.ReplaceAllString(strings.ReplaceAll(p, "/", "_"), "")
	if name == "" {
		name = "index"
	}
	if !strings.HasSuffix(name, DocumentExt) {
		name += DocumentExt
	}
	return name
}

// DomainDirName returns the per-site output directory name for a seed URL:
// the host with '.' and ':' replaced by '_' and anything unsafe removed.
func DomainDirName(seedURL string) string {
	host := ""
	if u, err := url.Parse(seedURL); err == nil {
		host = strings.ToLower(u.Host)
	}
	host = strings.NewReplacer(".", "_", ":", "_").Replace(host)
	host = invalidFilenameChars.ReplaceAllString(host, "")
	if host == "" {
		return "unknown"
	}
	return host
}
