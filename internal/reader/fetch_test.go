package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestAMPURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://example.com/news/story/":     "https://example.com/news/story/amp",
		"https://example.com/news/story?id=1": "https://example.com/news/story/amp?id=1",
		"https://example.com/news/story/amp":  "",
		"not a url":                           "",
	}
	for in, want := range cases {
		if got := AMPURL(in); got != want {
			t.Fatalf("AMPURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFetchSuccessSendsHeaders(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	res := Fetch(context.Background(), srv.URL+"/story", FetchOptions{UserAgent: "TestBot/1.0", HTTPClient: srv.Client()})
	if res.Outcome != OutcomeSuccess || res.Err != nil {
		t.Fatalf("Fetch() = %v, %v", res.Outcome, res.Err)
	}
	if ua, _ := gotUA.Load().(string); ua != "TestBot/1.0" {
		t.Fatalf("user agent = %q", ua)
	}
	if !strings.HasPrefix(res.ContentType, "text/html") {
		t.Fatalf("content type = %q", res.ContentType)
	}
}

func TestFetchTimeoutFallsBackToAMP(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/amp") {
			_, _ = w.Write([]byte("<html><body>amp</body></html>"))
			return
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	res := Fetch(context.Background(), srv.URL+"/slow/story", FetchOptions{Timeout: 100 * time.Millisecond, HTTPClient: srv.Client()})
	if res.Outcome != OutcomeTimeoutThenFallback {
		t.Fatalf("Outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if res.URL != srv.URL+"/slow/story/amp" {
		t.Fatalf("URL = %q", res.URL)
	}
	if !strings.Contains(string(res.Body), "amp") {
		t.Fatalf("Body = %q", res.Body)
	}
}

func TestFetchNon2xxDoesNotFallBack(t *testing.T) {
	t.Parallel()

	var ampHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/amp") {
			ampHits.Add(1)
		}
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	res := Fetch(context.Background(), srv.URL+"/story", FetchOptions{HTTPClient: srv.Client()})
	if res.Outcome != OutcomeFatal || res.Err == nil || !strings.Contains(res.Err.Error(), "410") {
		t.Fatalf("Fetch() = %v, %v", res.Outcome, res.Err)
	}
	if hits := ampHits.Load(); hits != 0 {
		t.Fatalf("amp fallback should not run on non-2xx, hits = %d", hits)
	}
}
