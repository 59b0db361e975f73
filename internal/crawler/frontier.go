package crawler

import (
	"context"
	"fmt"
	"sync"
)

// Frontier is an unbounded FIFO of crawl tasks with join semantics.
//
// Every Enqueue adds one unfinished task and every Done removes one, so Join
// only returns once the queue is empty and every dequeued task has been marked
// done. A worker that enqueues children before calling Done therefore keeps
// Join blocked until those children are processed too.
type Frontier struct {
	mu         sync.Mutex
	items      []CrawlTask
	unfinished int
	closed     bool
	// available is closed and replaced whenever items are added or the
	// frontier closes, waking blocked Dequeue calls.
	available chan struct{}
	// idle is closed when unfinished drops to zero.
	idle chan struct{}
}

// NewFrontier returns an empty frontier. Join on an empty frontier returns
// immediately.
func NewFrontier() *Frontier {
	idle := make(chan struct{})
	close(idle)
	return &Frontier{
		available: make(chan struct{}),
		idle:      idle,
	}
}

// Enqueue appends a task. It never blocks and performs no deduplication.
// Tasks enqueued after Close are dropped.
func (f *Frontier) Enqueue(task CrawlTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.items = append(f.items, task)
	if f.unfinished == 0 {
		f.idle = make(chan struct{})
	}
	f.unfinished++
	close(f.available)
	f.available = make(chan struct{})
}

// Dequeue pops the oldest task, blocking until one is available, the context
// ends, or the frontier is closed.
func (f *Frontier) Dequeue(ctx context.Context) (CrawlTask, error) {
	for {
		f.mu.Lock()
		if len(f.items) > 0 {
			task := f.items[0]
			f.items[0] = CrawlTask{}
			f.items = f.items[1:]
			f.mu.Unlock()
			return task, nil
		}
		if f.closed {
			f.mu.Unlock()
			return CrawlTask{}, ErrFrontierClosed
		}
		wake := f.available
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return CrawlTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-wake:
		}
	}
}

// Done marks one previously dequeued task as complete.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unfinished <= 0 {
		panic("crawler: Frontier.Done called more times than Enqueue")
	}
	f.unfinished--
	if f.unfinished == 0 {
		close(f.idle)
	}
}

// Join blocks until every enqueued task has been dequeued and marked done.
func (f *Frontier) Join(ctx context.Context) error {
	f.mu.Lock()
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("join canceled: %w", ctx.Err())
	case <-idle:
		return nil
	}
}

// Close wakes all blocked Dequeue calls with ErrFrontierClosed. Pending tasks
// are discarded and no longer count as outstanding; tasks already dequeued
// still need Done. Closing twice is safe.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if discarded := len(f.items); discarded > 0 {
		f.unfinished -= discarded
		if f.unfinished == 0 {
			close(f.idle)
		}
	}
	f.items = nil
	close(f.available)
}

// Len reports the number of queued, not yet dequeued, tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Outstanding reports the number of tasks not yet marked done.
func (f *Frontier) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unfinished
}

// VisitedSet records URLs whose fetch has been attempted. It is owned by one
// Coordinator run and shared by that run's workers.
type VisitedSet struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Add marks every given URL as visited and reports how many were new.
func (v *VisitedSet) Add(urls ...string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	added := 0
	for _, raw := range urls {
		if raw == "" {
			continue
		}
		key := NormalizeURL(raw)
		if _, ok := v.urls[key]; ok {
			continue
		}
		v.urls[key] = struct{}{}
		added++
	}
	return added
}

// Contains reports whether the URL has been visited.
func (v *VisitedSet) Contains(rawURL string) bool {
	key := NormalizeURL(rawURL)
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.urls[key]
	return ok
}

// Len returns the number of unique visited URLs.
func (v *VisitedSet) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.urls)
}
