// Package crawler implements the depth-limited site crawler: the frontier and
// visited set, the worker pool, the per-site coordinator and the scheduler that
// runs one coordinator per seed URL.
package crawler
