package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/globaltime"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Example politics</title>
    <language>en-gb</language>
    <item>
      <guid>story-1</guid>
      <title>Senate passes budget</title>
      <link>https://example.com/politics/budget?utm_source=rss</link>
      <description>&lt;p&gt;The &lt;b&gt;Senate&lt;/b&gt; voted late.&lt;/p&gt;</description>
      <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
      <dc:creator>Jane Reporter</dc:creator>
    </item>
    <item>
      <title>No link but titled</title>
    </item>
    <item>
      <description>neither link nor title</description>
    </item>
    <item>
      <link>https://example.com/untitled</link>
    </item>
  </channel>
</rss>`

func TestRSSFeedFetchBatch(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	feed := NewRSSFeed(RSSConfig{
		ID:              "rss-1",
		URL:             server.URL,
		Section:         "top",
		PublicationSlug: "example",
	}, Deps{HTTPClient: server.Client(), UserAgent: "shifttrack-test", Logger: zerolog.Nop()})

	items, err := feed.FetchBatch(context.Background())
	if err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if gotUA := <-agents; gotUA != "shifttrack-test" {
		t.Fatalf("user agent = %q", gotUA)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}

	first := items[0]
	if first.ExternalID != "story-1" {
		t.Fatalf("external id = %q", first.ExternalID)
	}
	if first.Summary != "The Senate voted late." {
		t.Fatalf("summary = %q", first.Summary)
	}
	if first.Author != "Jane Reporter" {
		t.Fatalf("author = %q", first.Author)
	}
	if first.Section != "news" {
		t.Fatalf("section = %q, want news", first.Section)
	}
	if first.Language != "en" {
		t.Fatalf("language = %q, want en", first.Language)
	}
	if first.PublicationSlug != "example" {
		t.Fatalf("publication slug = %q", first.PublicationSlug)
	}
	want := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	if !first.Published.Equal(want) {
		t.Fatalf("published = %v, want %v", first.Published, want)
	}

	if items[2].Title != "Untitled" {
		t.Fatalf("untitled item title = %q", items[2].Title)
	}
	if items[2].ExternalID != "https://example.com/untitled" {
		t.Fatalf("untitled item id = %q, want link fallback", items[2].ExternalID)
	}
}

func TestRSSFeedDefaultsPublishedToFetchTime(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	globaltime.SetMockTime(fixed)
	defer globaltime.ResetTime()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<rss version="2.0"><channel><title>x</title><item><title>a</title><link>https://example.com/a</link></item></channel></rss>`))
	}))
	defer server.Close()

	feed := NewRSSFeed(RSSConfig{ID: "rss-2", URL: server.URL}, Deps{HTTPClient: server.Client()})
	items, err := feed.FetchBatch(context.Background())
	if err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if len(items) != 1 || !items[0].Published.Equal(fixed) {
		t.Fatalf("items = %+v, want published %v", items, fixed)
	}
}

func TestRSSFeedNon2xxIsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	feed := NewRSSFeed(RSSConfig{ID: "rss-3", URL: server.URL}, Deps{HTTPClient: server.Client()})
	if _, err := feed.FetchBatch(context.Background()); err == nil {
		t.Fatalf("expected error for 410 response")
	}
}
