// Package memory stores documents in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/JakeFAU/docscrawl/internal/crawler"
)

var _ crawler.DocumentStore = (*Store)(nil)

// Store keeps documents in a map and returns pseudo URIs.
type Store struct {
	mu    sync.RWMutex
	sites map[string]struct{}
	data  map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		sites: make(map[string]struct{}),
		data:  make(map[string][]byte),
	}
}

// EnsureSite records the site.
func (s *Store) EnsureSite(_ context.Context, site string) error {
	if site == "" {
		return fmt.Errorf("site is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site] = struct{}{}
	return nil
}

// PutDocument stores a copy of data. The site must have been ensured first.
func (s *Store) PutDocument(_ context.Context, site, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[site]; !ok {
		return "", fmt.Errorf("site %q does not exist", site)
	}
	key := path.Join(site, name)
	s.data[key] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", key), nil
}

// Get returns a copy of a stored document.
func (s *Store) Get(site, name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path.Join(site, name)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Names lists the document names stored for a site, sorted.
func (s *Store) Names(site string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	prefix := site + "/"
	for key := range s.data {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			names = append(names, key[len(prefix):])
		}
	}
	sort.Strings(names)
	return names
}

// HasSite reports whether EnsureSite was called for site.
func (s *Store) HasSite(site string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sites[site]
	return ok
}
