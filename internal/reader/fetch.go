package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultFetchTimeout  = 40 * time.Second
	DefaultBodyByteLimit = 4 * 1024 * 1024

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 ShiftTrackBot/1.0"
)

// Outcome classifies a fetch attempt sequence.
type Outcome int

const (
	// OutcomeSuccess means the original URL answered in time.
	OutcomeSuccess Outcome = iota
	// OutcomeTimeoutThenFallback means the original URL timed out and the AMP variant answered.
	OutcomeTimeoutThenFallback
	// OutcomeFatal means no usable body was retrieved.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeoutThenFallback:
		return "timeout_then_fallback"
	default:
		return "fatal"
	}
}

// FetchOptions controls HTTP behavior for article fetches.
type FetchOptions struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// FetchResult is the typed result of Fetch. Err is set only for OutcomeFatal.
type FetchResult struct {
	Outcome     Outcome
	URL         string
	Body        []byte
	ContentType string
	Err         error
}

// Fetch retrieves pageURL. A timeout, and only a timeout, earns exactly one
// retry against the AMP variant of the URL.
func Fetch(ctx context.Context, pageURL string, opts FetchOptions) FetchResult {
	page := strings.TrimSpace(pageURL)
	if page == "" {
		return FetchResult{Outcome: OutcomeFatal, Err: fmt.Errorf("page URL is required")}
	}

	body, contentType, err := fetchOnce(ctx, page, opts)
	if err == nil {
		return FetchResult{Outcome: OutcomeSuccess, URL: page, Body: body, ContentType: contentType}
	}
	if !isTimeout(err) || ctx.Err() != nil {
		return FetchResult{Outcome: OutcomeFatal, URL: page, Err: err}
	}

	fallback := AMPURL(page)
	if fallback == "" {
		return FetchResult{Outcome: OutcomeFatal, URL: page, Err: err}
	}

	body, contentType, fallbackErr := fetchOnce(ctx, fallback, opts)
	if fallbackErr != nil {
		return FetchResult{
			Outcome: OutcomeFatal,
			URL:     fallback,
			Err:     fmt.Errorf("%w; amp fallback: %w", err, fallbackErr),
		}
	}
	return FetchResult{Outcome: OutcomeTimeoutThenFallback, URL: fallback, Body: body, ContentType: contentType}
}

// AMPURL derives the "/amp" path variant of raw, or "" when raw already is one.
func AMPURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	path := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(path, "/amp") {
		return ""
	}
	u.Path = path + "/amp"
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func fetchOnce(ctx context.Context, page string, opts FetchOptions) ([]byte, string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	bodyLimit := opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, page, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return body, strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type"))), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
