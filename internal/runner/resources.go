package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/KasiaMirowska/shift-track/internal/adapter"
	"github.com/KasiaMirowska/shift-track/internal/config"
	"github.com/KasiaMirowska/shift-track/internal/db"
)

// Resources are the connections shared by every adapter and hydration in a
// run. Close releases them once.
type Resources struct {
	Pool       *db.Pool
	HTTPClient *http.Client

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the database and builds a pooled HTTP client.
func Open(ctx context.Context, cfg *config.Config) (*Resources, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Resources{Pool: pool, HTTPClient: NewHTTPClient()}, nil
}

// NewHTTPClient returns a client with pooled keep-alive connections. Callers
// bound each request with a context deadline.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport}
}

func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	r.closeOnce.Do(func() {
		if r.HTTPClient != nil {
			r.HTTPClient.CloseIdleConnections()
		}
		if r.Pool != nil {
			r.closeErr = r.Pool.Close()
		}
	})
	return r.closeErr
}

// AdapterDeps builds the shared adapter handles from config.
func (r *Resources) AdapterDeps(cfg *config.Config, logger zerolog.Logger) adapter.Deps {
	return adapter.Deps{
		HTTPClient:  r.HTTPClient,
		UserAgent:   cfg.UserAgent,
		FeedTimeout: cfg.FeedFetchTimeout,
		Logger:      logger,
		Guardian: adapter.GuardianConfig{
			APIKey:   cfg.GuardianAPIKey,
			BaseURL:  cfg.GuardianAPIBaseURL,
			MaxPages: cfg.GuardianMaxPages,
			Limiter:  rate.NewLimiter(rate.Limit(cfg.GuardianRequestsPerSecond), 1),
		},
	}
}

// FeedLister returns catalog feed rows. *db.Pool implements it.
type FeedLister interface {
	ListEnabledFeeds(ctx context.Context, linkedOnly bool) ([]db.FeedRow, error)
}

// SelectAdapters prefers enabled feed rows and falls back to the static
// catalog when there are none or static mode is forced.
func SelectAdapters(ctx context.Context, feeds FeedLister, static bool, linkedOnly bool, deps adapter.Deps) ([]adapter.Adapter, string, error) {
	if !static && feeds != nil {
		rows, err := feeds.ListEnabledFeeds(ctx, linkedOnly)
		if err != nil {
			return nil, "", fmt.Errorf("list feeds: %w", err)
		}
		if len(rows) > 0 {
			return adapter.FromFeeds(rows, deps), "feeds", nil
		}
		deps.Logger.Warn().Bool("linked_only", linkedOnly).Msg("no enabled feeds; using static catalog")
	}

	catalog, err := adapter.DefaultCatalog()
	if err != nil {
		return nil, "", fmt.Errorf("load static catalog: %w", err)
	}
	adapters := catalog.StaticAdapters(deps)
	if len(adapters) == 0 {
		return nil, "", errors.New("static catalog produced no adapters")
	}
	return adapters, "static", nil
}
