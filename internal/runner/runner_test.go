package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/adapter"
	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/hydrate"
	"github.com/KasiaMirowska/shift-track/internal/matcher"
	"github.com/KasiaMirowska/shift-track/internal/persist"
)

type fakeAdapter struct {
	id    string
	items []article.Normalized
	err   error
	panic bool
	delay time.Duration
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) FetchBatch(ctx context.Context) ([]article.Normalized, error) {
	if f.panic {
		panic("feed exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, f.err
}

type fakePersister struct {
	mu        sync.Mutex
	persisted []string
	failFor   string
	targets   []db.HydrationTarget
}

func (f *fakePersister) LoadMatcher(context.Context) (*matcher.Matcher, error) {
	return matcher.New([]matcher.Watch{{WatchID: 1, SubjectID: 1, Query: "budget"}}), nil
}

func (f *fakePersister) Persist(_ context.Context, adapterID string, m *matcher.Matcher, items []article.Normalized) (persist.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted = append(f.persisted, adapterID)
	if adapterID == f.failFor {
		return persist.Result{}, errors.New("insert sources: boom")
	}
	kept := len(m.Filter(items))
	return persist.Result{
		AdapterID:      adapterID,
		Fetched:        len(items),
		Kept:           kept,
		Inserted:       kept,
		Linked:         kept,
		NewLinks:       kept,
		HydrateTargets: f.targets,
	}, nil
}

type fakeHydrator struct {
	calls atomic.Int32
}

func (f *fakeHydrator) HydrateAll(_ context.Context, targets []db.HydrationTarget) hydrate.BatchResult {
	f.calls.Add(1)
	return hydrate.BatchResult{Attempted: len(targets), Hydrated: len(targets) - 1, Failed: 1}
}

type fakeLedger struct {
	started  bool
	finished db.RunTotals
	runErr   error
}

func (f *fakeLedger) StartIngestRun(context.Context, string) (int64, string, error) {
	f.started = true
	return 7, "run-uuid", nil
}

func (f *fakeLedger) FinishIngestRun(_ context.Context, _ int64, totals db.RunTotals, runErr error) error {
	f.finished = totals
	f.runErr = runErr
	return nil
}

func budgetItems() []article.Normalized {
	return []article.Normalized{
		{URL: "https://example.com/a", Title: "Budget vote tonight"},
		{URL: "https://example.com/b", Title: "Weather"},
	}
}

func TestRunIsolatesAdapterFailures(t *testing.T) {
	t.Parallel()

	persister := &fakePersister{
		failFor: "persist-fails",
		targets: []db.HydrationTarget{{SourceID: 1, URL: "https://example.com/a"}, {SourceID: 2, URL: "https://example.com/c"}},
	}
	hydrator := &fakeHydrator{}
	ledger := &fakeLedger{}

	adapters := []adapter.Adapter{
		&fakeAdapter{id: "fetch-fails", err: errors.New("status 503")},
		&fakeAdapter{id: "panics", panic: true},
		&fakeAdapter{id: "persist-fails", items: budgetItems()},
		&fakeAdapter{id: "ok", items: budgetItems()},
	}

	summary, err := New(persister, hydrator, ledger, zerolog.Nop(), Options{}).Run(context.Background(), adapters)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Totals.AdaptersTotal != 4 || summary.Totals.AdaptersFailed != 3 {
		t.Fatalf("totals = %+v", summary.Totals)
	}
	last := summary.Adapters[3]
	if last.Err != nil || last.Fetched != 2 || last.Kept != 1 || last.Hydrated != 1 || last.HydrateFailed != 1 {
		t.Fatalf("ok adapter report = %+v", last)
	}
	if summary.Adapters[1].Err == nil {
		t.Fatalf("expected panic to be reported as error")
	}
	if got := hydrator.calls.Load(); got != 1 {
		t.Fatalf("hydrator calls = %d, want 1", got)
	}
	if !ledger.started || ledger.finished.AdaptersFailed != 3 || ledger.runErr != nil {
		t.Fatalf("ledger = %+v", ledger)
	}
	if summary.RunUUID != "run-uuid" || !summary.Failed() || summary.Errors() == nil {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunBoundedConcurrency(t *testing.T) {
	t.Parallel()

	var adapters []adapter.Adapter
	for _, id := range []string{"a", "b", "c", "d"} {
		adapters = append(adapters, &fakeAdapter{id: id, items: budgetItems(), delay: 20 * time.Millisecond})
	}

	persister := &fakePersister{}
	summary, err := New(persister, nil, nil, zerolog.Nop(), Options{Concurrency: 2}).Run(context.Background(), adapters)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Totals.ItemsKept != 4 || summary.Totals.AdaptersFailed != 0 {
		t.Fatalf("totals = %+v", summary.Totals)
	}
	for i, rep := range summary.Adapters {
		if rep.AdapterID != adapters[i].ID() {
			t.Fatalf("report %d = %s, want %s", i, rep.AdapterID, adapters[i].ID())
		}
	}
}

func TestRunAdapterTimeout(t *testing.T) {
	t.Parallel()

	adapters := []adapter.Adapter{
		&fakeAdapter{id: "slow", delay: time.Second},
		&fakeAdapter{id: "fast", items: budgetItems()},
	}
	summary, err := New(&fakePersister{}, nil, nil, zerolog.Nop(), Options{AdapterTimeout: 10 * time.Millisecond}).
		Run(context.Background(), adapters)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !errors.Is(summary.Adapters[0].Err, context.DeadlineExceeded) {
		t.Fatalf("slow adapter err = %v", summary.Adapters[0].Err)
	}
	if summary.Adapters[1].Err != nil {
		t.Fatalf("fast adapter err = %v", summary.Adapters[1].Err)
	}
}

func TestRunNoAdapters(t *testing.T) {
	t.Parallel()

	summary, err := New(&fakePersister{}, nil, nil, zerolog.Nop(), Options{}).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Totals.AdaptersTotal != 0 {
		t.Fatalf("totals = %+v", summary.Totals)
	}
}

type fakeFeeds struct {
	rows []db.FeedRow
}

func (f fakeFeeds) ListEnabledFeeds(context.Context, bool) ([]db.FeedRow, error) {
	return f.rows, nil
}

func TestSelectAdapters(t *testing.T) {
	t.Parallel()

	deps := adapter.Deps{Logger: zerolog.Nop()}

	adapters, origin, err := SelectAdapters(context.Background(), fakeFeeds{rows: []db.FeedRow{
		{FeedID: 3, Kind: "rss", URL: "https://example.com/rss.xml"},
	}}, false, false, deps)
	if err != nil || origin != "feeds" || len(adapters) != 1 || adapters[0].ID() != "rss-3" {
		t.Fatalf("feeds: adapters=%d origin=%s err=%v", len(adapters), origin, err)
	}

	adapters, origin, err = SelectAdapters(context.Background(), fakeFeeds{}, false, false, deps)
	if err != nil || origin != "static" || len(adapters) == 0 {
		t.Fatalf("empty catalog: adapters=%d origin=%s err=%v", len(adapters), origin, err)
	}

	_, origin, err = SelectAdapters(context.Background(), fakeFeeds{rows: []db.FeedRow{{FeedID: 1, Kind: "rss"}}}, true, false, deps)
	if err != nil || origin != "static" {
		t.Fatalf("forced static: origin=%s err=%v", origin, err)
	}
}

func TestResourcesCloseOnce(t *testing.T) {
	t.Parallel()

	res := &Resources{HTTPClient: NewHTTPClient()}
	if err := res.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
