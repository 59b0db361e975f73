package crawler

import (
	"fmt"
)

// Default tuning values.
const (
	DefaultMaxDepth    = 1
	DefaultConcurrency = 25
	DefaultWorkers     = 25
)

// Config captures the knobs that influence one crawl run. It is decoupled from
// Viper so the crawler can be configured and tested independently.
type Config struct {
	// MaxDepth is the deepest link distance from the seed that is fetched.
	MaxDepth int
	// Concurrency caps in-flight page processing per site.
	Concurrency int
	// Workers is the number of goroutines draining each site's frontier.
	Workers int
	// Topic receives one completion notice per site when a Publisher is set.
	Topic string
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}
	return c
}
