package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/time/rate"
)

func guardianPage(current, pages int, id string) string {
	return fmt.Sprintf(`{"response":{"status":"ok","currentPage":%d,"pages":%d,"results":[
		{"id":"%s","webUrl":"https://www.theguardian.com/%s","webTitle":"","webPublicationDate":"2025-06-01T12:00:00Z",
		 "fields":{"trailText":"<p>Trail</p>","body":"<p>Body</p>","headline":"Headline %s","byline":"A Writer"}}]}}`,
		current, pages, id, id, id)
}

func TestGuardianAPIPaginates(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	queries := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		queries <- r.URL.RawQuery
		if r.URL.Path != "/politics" {
			t.Errorf("path = %q, want /politics", r.URL.Path)
		}
		page := r.URL.Query().Get("page")
		switch page {
		case "1":
			_, _ = w.Write([]byte(guardianPage(1, 2, "politics/one")))
		case "2":
			_, _ = w.Write([]byte(guardianPage(2, 2, "politics/two")))
		default:
			t.Errorf("unexpected page %q", page)
		}
	}))
	defer server.Close()

	api, err := NewGuardianAPI(GuardianConfigForFeed{
		ID:      "guardian-politics-7",
		BaseURL: server.URL,
		Section: "politics",
		Params:  GuardianParams{Query: "budget", MaxPages: 5},
	}, Deps{
		HTTPClient: server.Client(),
		Guardian:   GuardianConfig{APIKey: "k", Limiter: rate.NewLimiter(rate.Inf, 1)},
	})
	if err != nil {
		t.Fatalf("NewGuardianAPI() error = %v", err)
	}

	items, err := api.FetchBatch(context.Background())
	if err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	firstQuery := <-queries
	for _, want := range []string{"api-key=k", "page-size=25", "q=budget", "show-fields=trailText%2Cbody%2Cheadline%2Cbyline%2CshortUrl"} {
		if !strings.Contains(firstQuery, want) {
			t.Fatalf("query %q missing %q", firstQuery, want)
		}
	}

	item := items[0]
	if item.Title != "Headline politics/one" {
		t.Fatalf("title = %q, want headline fallback", item.Title)
	}
	if item.Summary != "Trail" || item.HTML != "<p>Body</p>" || item.Author != "A Writer" {
		t.Fatalf("unexpected mapping: %+v", item)
	}
	if item.PublicationSlug != "guardian" || item.Language != "en" || item.Section != "politics" {
		t.Fatalf("unexpected tags: %+v", item)
	}
}

func TestGuardianAPIStopsAtMaxPages(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		_, _ = w.Write([]byte(guardianPage(int(n), 10, fmt.Sprintf("world/%d", n))))
	}))
	defer server.Close()

	api, err := NewGuardianAPI(GuardianConfigForFeed{ID: "g", BaseURL: server.URL, Section: "news"}, Deps{
		HTTPClient: server.Client(),
		Guardian:   GuardianConfig{APIKey: "k", MaxPages: 3},
	})
	if err != nil {
		t.Fatalf("NewGuardianAPI() error = %v", err)
	}
	if _, err := api.FetchBatch(context.Background()); err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestGuardianAPIErrorCarriesStatusAndBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer server.Close()

	api, err := NewGuardianAPI(GuardianConfigForFeed{ID: "g", BaseURL: server.URL, Section: "science"}, Deps{
		HTTPClient: server.Client(),
		Guardian:   GuardianConfig{APIKey: "k"},
	})
	if err != nil {
		t.Fatalf("NewGuardianAPI() error = %v", err)
	}

	_, err = api.FetchBatch(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "guardian api science p1 failed: 403 ") {
		t.Fatalf("error = %q", msg)
	}
	if got := len(strings.TrimPrefix(msg, "guardian api science p1 failed: 403 ")); got != 200 {
		t.Fatalf("body excerpt length = %d, want 200", got)
	}
}

func TestNewGuardianAPIRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGuardianAPI(GuardianConfigForFeed{ID: "g"}, Deps{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestGuardianSectionPath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":         "world",
		"top":      "world",
		"news":     "world",
		"politics": "politics",
		"science":  "science",
		"culture":  "culture",
		"sport":    "world",
	}
	for in, want := range cases {
		if got := GuardianSectionPath(in); got != want {
			t.Fatalf("GuardianSectionPath(%q) = %q, want %q", in, got, want)
		}
	}
}
