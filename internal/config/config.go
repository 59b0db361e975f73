// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/JakeFAU/docscrawl/internal/crawler"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig         `mapstructure:"crawler"`
	Sites   map[string]SiteConfig `mapstructure:"sites"`
	Storage StorageConfig         `mapstructure:"storage"`
	PubSub  PubSubConfig          `mapstructure:"pubsub"`
	Logging LoggingConfig         `mapstructure:"logging"`
	Metrics MetricsConfig         `mapstructure:"metrics"`
}

// CrawlerConfig governs the crawl pipeline.
type CrawlerConfig struct {
	MaxDepth         int           `mapstructure:"max_depth"`
	Concurrency      int           `mapstructure:"concurrency"`
	Workers          int           `mapstructure:"workers"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxBodySize      int           `mapstructure:"max_body_size"`
	OutputDir        string        `mapstructure:"output_dir"`
	BinaryExtensions []string      `mapstructure:"binary_extensions"`
	SeedsFile        string        `mapstructure:"seeds_file"`
}

// SiteConfig groups the seed URLs of one documentation site.
type SiteConfig struct {
	MainURL []string `mapstructure:"main_url" yaml:"main_url"`
}

// StorageConfig enables the optional GCS mirror.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion notices.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig enables the status server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment. Seeds come from the inline
// sites map or, when that is empty, from crawler.seeds_file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if path != "" && v.IsSet("sites") {
		sites, err := readSites(path, "", "sites")
		if err != nil {
			return Config{}, err
		}
		cfg.Sites = sites
	}

	if len(cfg.Sites) == 0 && cfg.Crawler.SeedsFile != "" {
		sites, err := LoadSeedsFile(cfg.Crawler.SeedsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Sites = sites
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadSeedsFile reads a YAML document shaped {<site>: {main_url: [url, ...]}}.
// A missing file yields an empty map.
func LoadSeedsFile(path string) (map[string]SiteConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]SiteConfig{}, nil
		}
		return nil, fmt.Errorf("stat seeds file: %w", err)
	}
	return readSites(path, "yaml", "")
}

// siteKeyDelimiter replaces viper's "." so site names such as
// "docs.python.org" stay single keys instead of nesting.
const siteKeyDelimiter = "::"

// readSites decodes a site map from the file at path, either the whole
// document (key == "") or the value under key.
func readSites(path, configType, key string) (map[string]SiteConfig, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(siteKeyDelimiter))
	v.SetConfigFile(path)
	if configType != "" {
		v.SetConfigType(configType)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read sites from %s: %w", path, err)
	}
	sites := make(map[string]SiteConfig)
	var err error
	if key == "" {
		err = v.Unmarshal(&sites)
	} else {
		err = v.UnmarshalKey(key, &sites)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal sites from %s: %w", path, err)
	}
	return sites, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.max_depth", crawler.DefaultMaxDepth)
	v.SetDefault("crawler.concurrency", crawler.DefaultConcurrency)
	v.SetDefault("crawler.workers", crawler.DefaultWorkers)
	v.SetDefault("crawler.request_timeout", 10*time.Second)
	v.SetDefault("crawler.user_agent", "docscrawl/0.1")
	v.SetDefault("crawler.max_body_size", 10<<20)
	v.SetDefault("crawler.output_dir", "output")
	v.SetDefault("crawler.binary_extensions", []string{".pdf", ".jpg", ".zip", ".png"})
	v.SetDefault("crawler.seeds_file", "input/links.yaml")
	v.SetDefault("storage.prefix", "docs")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Every problem is
// reported, not only the first.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Crawler.MaxDepth < 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.max_depth must be >= 0"))
	}
	if c.Crawler.Concurrency <= 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.concurrency must be > 0"))
	}
	if c.Crawler.Workers <= 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.workers must be > 0"))
	}
	if c.Crawler.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.request_timeout must be > 0"))
	}
	if strings.TrimSpace(c.Crawler.OutputDir) == "" {
		result = multierror.Append(result, fmt.Errorf("crawler.output_dir is required"))
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		result = multierror.Append(result, fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set"))
	}

	seeds := 0
	for _, site := range c.siteNames() {
		for _, raw := range c.Sites[site].MainURL {
			seeds++
			if err := validateSeedURL(raw); err != nil {
				result = multierror.Append(result, fmt.Errorf("sites.%s: %w", site, err))
			}
		}
	}
	if seeds == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one seed URL is required (sites or crawler.seeds_file)"))
	}
	return result.ErrorOrNil()
}

// Seeds flattens the site map into seeds ordered by site name, keeping each
// site's URL order. Repeated URLs are kept once.
func (c Config) Seeds() []crawler.SiteSeed {
	var seeds []crawler.SiteSeed
	seen := make(map[string]struct{})
	for _, site := range c.siteNames() {
		for _, raw := range c.Sites[site].MainURL {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			seeds = append(seeds, crawler.SiteSeed{Site: site, URL: raw})
		}
	}
	return seeds
}

// CrawlConfig converts the crawler section into the crawler package's config.
func (c Config) CrawlConfig() crawler.Config {
	return crawler.Config{
		MaxDepth:    c.Crawler.MaxDepth,
		Concurrency: c.Crawler.Concurrency,
		Workers:     c.Crawler.Workers,
		Topic:       c.PubSub.TopicName,
	}
}

func (c Config) siteNames() []string {
	names := make([]string, 0, len(c.Sites))
	for name := range c.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateSeedURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid seed url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("seed url %q must be an absolute http(s) url", raw)
	}
	return nil
}
