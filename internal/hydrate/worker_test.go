package hydrate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/reader"
)

const pageHTML = `<!doctype html>
<html>
<head>
  <title>Budget passes after marathon session</title>
  <meta name="author" content="Sam Reporter">
</head>
<body>
  <article>
    <h1>Budget passes after marathon session</h1>
    <p>Lawmakers approved the spending plan early on Friday after a marathon overnight session, ending weeks of uncertainty over funding for schools, hospitals and public transport.</p>
    <p>Supporters said the plan would bring strong growth and improve services, while critics warned of a decline in reserves and a risk of higher borrowing costs next year.</p>
    <p>The measure now heads to the governor, who is expected to sign it into law within days, aides said in a statement released after the vote.</p>
  </article>
</body>
</html>`

type fakeStore struct {
	mu     sync.Mutex
	meta   map[int64]db.SourceMeta
	writes []db.HydrationWrite
}

func (s *fakeStore) LoadSourceMeta(_ context.Context, sourceID int64) (db.SourceMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.meta[sourceID]
	if !ok {
		return db.SourceMeta{}, db.ErrNoRows
	}
	return meta, nil
}

func (s *fakeStore) SaveHydration(_ context.Context, w db.HydrationWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, w)
	return nil
}

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/story":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprint(w, pageHTML)
		case "/empty":
			w.Header().Set("Content-Type", "text/plain")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func strPtr(s string) *string { return &s }

func TestHydratePreservesExistingAuthor(t *testing.T) {
	t.Parallel()

	srv := newPageServer(t)
	store := &fakeStore{meta: map[int64]db.SourceMeta{
		1: {SourceID: 1, Title: "Feed title", Author: strPtr("Feed Author"), Excerpt: strPtr("Feed excerpt")},
	}}
	worker := NewWorker(store, zerolog.Nop(), Options{Fetch: reader.FetchOptions{HTTPClient: srv.Client()}})

	out, err := worker.Hydrate(context.Background(), db.HydrationTarget{SourceID: 1, URL: srv.URL + "/story"})
	if err != nil {
		t.Fatalf("Hydrate() error: %v", err)
	}
	if out.AuthorFilled || out.ExcerptFilled {
		t.Fatalf("outcome = %+v, want no metadata fill", out)
	}
	if len(store.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(store.writes))
	}
	write := store.writes[0]
	if write.Author != nil || write.Excerpt != nil || write.Title != nil {
		t.Fatalf("write overwrote feed metadata: %+v", write)
	}
	if write.WordCount == 0 || len(write.TextHash) != 64 {
		t.Fatalf("write = %+v", write)
	}
	if write.Sentiment < -1 || write.Sentiment > 1 {
		t.Fatalf("sentiment out of range: %v", write.Sentiment)
	}
}

func TestHydrateFillsMissingAuthorAndExcerpt(t *testing.T) {
	t.Parallel()

	srv := newPageServer(t)
	store := &fakeStore{meta: map[int64]db.SourceMeta{
		2: {SourceID: 2, Title: db.UntitledPlaceholder},
	}}
	worker := NewWorker(store, zerolog.Nop(), Options{Fetch: reader.FetchOptions{HTTPClient: srv.Client()}})

	out, err := worker.Hydrate(context.Background(), db.HydrationTarget{SourceID: 2, URL: srv.URL + "/story"})
	if err != nil {
		t.Fatalf("Hydrate() error: %v", err)
	}
	if !out.AuthorFilled || !out.ExcerptFilled {
		t.Fatalf("outcome = %+v, want author and excerpt filled", out)
	}

	write := store.writes[0]
	if write.Author == nil || !strings.Contains(*write.Author, "Sam Reporter") {
		t.Fatalf("author = %v", write.Author)
	}
	if write.Excerpt == nil || len([]rune(*write.Excerpt)) > DefaultExcerptChars || strings.Contains(*write.Excerpt, "\n") {
		t.Fatalf("excerpt = %v", write.Excerpt)
	}
	if write.Title == nil {
		t.Fatalf("expected title to replace placeholder")
	}
}

func TestHydrateAllContinuesAfterFailures(t *testing.T) {
	t.Parallel()

	srv := newPageServer(t)
	store := &fakeStore{meta: map[int64]db.SourceMeta{
		3: {SourceID: 3, Title: "ok"},
		4: {SourceID: 4, Title: "missing page"},
		5: {SourceID: 5, Title: "empty page"},
	}}
	worker := NewWorker(store, zerolog.Nop(), Options{Fetch: reader.FetchOptions{HTTPClient: srv.Client()}})

	result := worker.HydrateAll(context.Background(), []db.HydrationTarget{
		{SourceID: 4, URL: srv.URL + "/missing"},
		{SourceID: 5, URL: srv.URL + "/empty"},
		{SourceID: 3, URL: srv.URL + "/story"},
	})
	if result.Attempted != 3 || result.Hydrated != 1 || result.Failed != 2 {
		t.Fatalf("HydrateAll() = %+v", result)
	}
	if len(store.writes) != 1 || store.writes[0].SourceID != 3 {
		t.Fatalf("writes = %+v", store.writes)
	}
}

func TestHydrateEmptyPageIsExtractionError(t *testing.T) {
	t.Parallel()

	srv := newPageServer(t)
	store := &fakeStore{meta: map[int64]db.SourceMeta{6: {SourceID: 6}}}
	worker := NewWorker(store, zerolog.Nop(), Options{Fetch: reader.FetchOptions{HTTPClient: srv.Client()}})

	_, err := worker.Hydrate(context.Background(), db.HydrationTarget{SourceID: 6, URL: srv.URL + "/empty"})
	if !reader.IsExtractionError(err) {
		t.Fatalf("Hydrate() error = %v, want ExtractionError", err)
	}
	if len(store.writes) != 0 {
		t.Fatalf("no write expected, got %+v", store.writes)
	}
}
