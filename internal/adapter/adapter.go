// Package adapter turns heterogeneous news sources into normalized articles.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/KasiaMirowska/shift-track/internal/article"
)

// Adapter fetches one batch of articles from a single source.
type Adapter interface {
	ID() string
	FetchBatch(ctx context.Context) ([]article.Normalized, error)
}

// Kind is the feed kind stored on catalog rows.
type Kind string

const (
	KindRSS     Kind = "rss"
	KindAtom    Kind = "atom"
	KindAPI     Kind = "api"
	KindScraper Kind = "scraper"
)

// GuardianAdapterKey selects the Guardian content API for api-kind feeds.
const GuardianAdapterKey = "guardian-api"

var ErrUnsupportedKind = errors.New("unsupported feed kind")

const (
	defaultFeedTimeout = 20 * time.Second
	maxFeedBodyBytes   = 8 * 1024 * 1024
)

// Deps are the shared handles passed to every adapter. The runner owns their lifetime.
type Deps struct {
	HTTPClient  *http.Client
	UserAgent   string
	FeedTimeout time.Duration
	Logger      zerolog.Logger
	Guardian    GuardianConfig
}

// GuardianConfig carries credentials and pacing for the Guardian content API.
type GuardianConfig struct {
	APIKey   string
	BaseURL  string
	MaxPages int
	Limiter  *rate.Limiter
}

func (d Deps) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d Deps) timeout() time.Duration {
	if d.FeedTimeout > 0 {
		return d.FeedTimeout
	}
	return defaultFeedTimeout
}

// get performs a GET with the shared client and returns the body of a 2xx
// response. Other statuses become errors carrying up to 200 bytes of body.
func (d Deps) get(ctx context.Context, target, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if ua := strings.TrimSpace(d.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", redactQuery(target), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncateBody(body, 200)}
	}
	return body, nil
}

// StatusError is a non-2xx response from a source.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func truncateBody(body []byte, limit int) string {
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		text = text[:limit]
	}
	return text
}

func redactQuery(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
