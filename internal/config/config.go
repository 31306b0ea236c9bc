package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	UserAgent           string        `envconfig:"HTTP_USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 ShiftTrackBot/1.0"`
	FeedFetchTimeout    time.Duration `envconfig:"FEED_FETCH_TIMEOUT" default:"20s"`
	ArticleFetchTimeout time.Duration `envconfig:"ARTICLE_FETCH_TIMEOUT" default:"40s"`
	ArticleBodyLimit    int64         `envconfig:"ARTICLE_BODY_LIMIT_BYTES" default:"4194304"`

	GuardianAPIKey            string  `envconfig:"GUARDIAN_API_KEY" default:""`
	GuardianAPIBaseURL        string  `envconfig:"GUARDIAN_API_BASE_URL" default:"https://content.guardianapis.com"`
	GuardianRequestsPerSecond float64 `envconfig:"GUARDIAN_REQUESTS_PER_SECOND" default:"2"`
	GuardianMaxPages          int     `envconfig:"GUARDIAN_MAX_PAGES" default:"1"`

	IngestStatic         bool          `envconfig:"INGEST_STATIC" default:"false"`
	IngestConcurrency    int           `envconfig:"INGEST_CONCURRENCY" default:"1"`
	IngestAdapterTimeout time.Duration `envconfig:"INGEST_ADAPTER_TIMEOUT" default:"2m"`

	SourceInsertBatchSize int `envconfig:"SOURCE_INSERT_BATCH_SIZE" default:"25"`
	HydrateBacklogLimit   int `envconfig:"HYDRATE_BACKLOG_LIMIT" default:"15"`

	FeedResolverLimit int    `envconfig:"FEED_RESOLVER_LIMIT" default:"12"`
	DefaultFeedURL    string `envconfig:"DEFAULT_FEED_URL" default:"http://feeds.reuters.com/reuters/politicsNews"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.FeedFetchTimeout <= 0 {
		return fmt.Errorf("FEED_FETCH_TIMEOUT must be > 0")
	}
	if c.ArticleFetchTimeout <= 0 {
		return fmt.Errorf("ARTICLE_FETCH_TIMEOUT must be > 0")
	}
	if c.ArticleBodyLimit < 1024 {
		return fmt.Errorf("ARTICLE_BODY_LIMIT_BYTES must be >= 1024")
	}
	if strings.TrimSpace(c.GuardianAPIBaseURL) == "" {
		return fmt.Errorf("GUARDIAN_API_BASE_URL is required")
	}
	if c.GuardianRequestsPerSecond <= 0 {
		return fmt.Errorf("GUARDIAN_REQUESTS_PER_SECOND must be > 0")
	}
	if c.GuardianMaxPages < 1 {
		return fmt.Errorf("GUARDIAN_MAX_PAGES must be >= 1")
	}
	if c.IngestConcurrency < 1 {
		return fmt.Errorf("INGEST_CONCURRENCY must be >= 1")
	}
	if c.IngestAdapterTimeout <= 0 {
		return fmt.Errorf("INGEST_ADAPTER_TIMEOUT must be > 0")
	}
	if c.SourceInsertBatchSize < 1 || c.SourceInsertBatchSize > 500 {
		return fmt.Errorf("SOURCE_INSERT_BATCH_SIZE must be between 1 and 500")
	}
	if c.HydrateBacklogLimit < 1 {
		return fmt.Errorf("HYDRATE_BACKLOG_LIMIT must be >= 1")
	}
	if c.FeedResolverLimit < 1 {
		return fmt.Errorf("FEED_RESOLVER_LIMIT must be >= 1")
	}
	if strings.TrimSpace(c.DefaultFeedURL) == "" {
		return fmt.Errorf("DEFAULT_FEED_URL is required")
	}
	return nil
}

// HasGuardianKey reports whether Guardian API adapters can be built.
func (c *Config) HasGuardianKey() bool {
	return c != nil && strings.TrimSpace(c.GuardianAPIKey) != ""
}
