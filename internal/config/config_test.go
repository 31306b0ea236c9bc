package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:               "postgres://localhost/shifttrack",
		DBMinConns:                1,
		DBMaxConns:                8,
		FeedFetchTimeout:          20 * time.Second,
		ArticleFetchTimeout:       40 * time.Second,
		ArticleBodyLimit:          4 << 20,
		GuardianAPIBaseURL:        "https://content.guardianapis.com",
		GuardianRequestsPerSecond: 2,
		GuardianMaxPages:          1,
		IngestConcurrency:         1,
		IngestAdapterTimeout:      2 * time.Minute,
		SourceInsertBatchSize:     25,
		HydrateBacklogLimit:       15,
		FeedResolverLimit:         12,
		DefaultFeedURL:            "http://feeds.reuters.com/reuters/politicsNews",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = " " }, wantErr: "DATABASE_URL"},
		{name: "min exceeds max", mutate: func(c *Config) { c.DBMinConns = 9 }, wantErr: "cannot exceed"},
		{name: "zero batch", mutate: func(c *Config) { c.SourceInsertBatchSize = 0 }, wantErr: "SOURCE_INSERT_BATCH_SIZE"},
		{name: "zero concurrency", mutate: func(c *Config) { c.IngestConcurrency = 0 }, wantErr: "INGEST_CONCURRENCY"},
		{name: "no article timeout", mutate: func(c *Config) { c.ArticleFetchTimeout = 0 }, wantErr: "ARTICLE_FETCH_TIMEOUT"},
		{name: "no default feed", mutate: func(c *Config) { c.DefaultFeedURL = "" }, wantErr: "DEFAULT_FEED_URL"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestHasGuardianKey(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if cfg.HasGuardianKey() {
		t.Fatalf("expected no guardian key")
	}
	cfg.GuardianAPIKey = "abc"
	if !cfg.HasGuardianKey() {
		t.Fatalf("expected guardian key")
	}
}
