// Package config defines the crawler's runtime configuration, loaded
// via viper from a file, the environment, and flags (in that order of
// increasing precedence).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// CrawlerConfig holds every knob the scheduler/fetcher/processor/
// result-worker quartet needs, generalized from the teacher's
// CrawlConfig down to the spider coordination core's actual surface.
type CrawlerConfig struct {
	// === Scheduler / TaskQueue ===

	// Requests per second the scheduler's TaskQueue admits, shared by
	// all projects (0 = unlimited).
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`

	// Token-bucket burst size.
	Burst int `mapstructure:"burst"`

	// How long a leased (processing) task may run before being
	// returned to the queue for reissue.
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`

	// === Fetcher ===

	// Concurrent in-flight fetches.
	Concurrency int `mapstructure:"concurrency"`

	// Deadline for the fetch-one command's single fetch. Pipeline fetches
	// use the fetcher's built-in 120s default or task.fetch.timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// Default User-Agent header.
	UserAgent string `mapstructure:"user_agent"`

	// Default SOCKS5 proxy ("host:port"), overridden per-task.
	Proxy string `mapstructure:"proxy"`

	// Base URL of the render-fetch backend (empty disables js/phantomjs
	// fetch_type and yields a 501 FetchResult).
	RenderURL string `mapstructure:"render_url"`

	// === Render backend (internal/renderer.Server) ===

	RenderPoolSize int           `mapstructure:"render_pool_size"`
	RenderTimeout  time.Duration `mapstructure:"render_timeout"`

	// === Storage ===

	// Directory holding spider.db, the SQLite file backing
	// ProjectDB/ResultDB.
	DataDir string `mapstructure:"data_dir"`

	// === Process wiring ===

	// scheduler|fetcher|processor|result|all
	Role string `mapstructure:"role"`

	// Capacity of each of the pipeline's in-process queues.
	QueueCapacity int `mapstructure:"queue_capacity"`
}

// DefaultConfig returns a CrawlerConfig with sensible defaults,
// mirroring the teacher's DefaultConfig preset pattern.
func DefaultConfig() *CrawlerConfig {
	return &CrawlerConfig{
		RequestsPerSecond: 10,
		Burst:             3,
		ProcessingTimeout: 600 * time.Second,

		Concurrency: 10,
		Timeout:     120 * time.Second,
		UserAgent:   "spider-crawler/1.0 (+https://github.com/spider-crawler/spider)",

		RenderPoolSize: 3,
		RenderTimeout:  30 * time.Second,

		DataDir: "./data",

		Role:          "all",
		QueueCapacity: 100,
	}
}

// Validate clamps out-of-range values the way the teacher's own
// Validate does, rather than rejecting the config outright.
func (c *CrawlerConfig) Validate() error {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Timeout < time.Second {
		c.Timeout = time.Second
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.ProcessingTimeout < time.Second {
		c.ProcessingTimeout = time.Second
	}
	if c.RenderPoolSize < 1 {
		c.RenderPoolSize = 1
	}
	if c.QueueCapacity < 1 {
		c.QueueCapacity = 1
	}
	switch c.Role {
	case "scheduler", "fetcher", "processor", "result", "all":
	default:
		return fmt.Errorf("config: invalid role %q", c.Role)
	}
	return nil
}

// Clone deep-copies the configuration (the teacher's Clone pattern;
// every field here is a value type, so a plain struct copy suffices).
func (c *CrawlerConfig) Clone() *CrawlerConfig {
	clone := *c
	return &clone
}

// Load reads configuration from filePath (if it exists), environment
// variables prefixed SPIDER_, and returns a validated CrawlerConfig
// seeded with DefaultConfig's values.
func Load(filePath string) (*CrawlerConfig, error) {
	v := viper.New()
	cfg := DefaultConfig()

	v.SetConfigFile(filePath)
	v.SetEnvPrefix("spider")
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", filePath, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg *CrawlerConfig) {
	v.SetDefault("requests_per_second", cfg.RequestsPerSecond)
	v.SetDefault("burst", cfg.Burst)
	v.SetDefault("processing_timeout", cfg.ProcessingTimeout)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("proxy", cfg.Proxy)
	v.SetDefault("render_url", cfg.RenderURL)
	v.SetDefault("render_pool_size", cfg.RenderPoolSize)
	v.SetDefault("render_timeout", cfg.RenderTimeout)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("role", cfg.Role)
	v.SetDefault("queue_capacity", cfg.QueueCapacity)
}
