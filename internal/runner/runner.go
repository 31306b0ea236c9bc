// Package runner sequences adapters through matching, persistence and hydration.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/KasiaMirowska/shift-track/internal/adapter"
	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/globaltime"
	"github.com/KasiaMirowska/shift-track/internal/hydrate"
	"github.com/KasiaMirowska/shift-track/internal/matcher"
	"github.com/KasiaMirowska/shift-track/internal/persist"
)

// Persister is the write path. *persist.Engine implements it.
type Persister interface {
	LoadMatcher(ctx context.Context) (*matcher.Matcher, error)
	Persist(ctx context.Context, adapterID string, m *matcher.Matcher, items []article.Normalized) (persist.Result, error)
}

// Hydrator backfills article text. *hydrate.Worker implements it.
type Hydrator interface {
	HydrateAll(ctx context.Context, targets []db.HydrationTarget) hydrate.BatchResult
}

// Ledger records ingest runs. *db.Pool implements it.
type Ledger interface {
	StartIngestRun(ctx context.Context, trigger string) (int64, string, error)
	FinishIngestRun(ctx context.Context, runID int64, totals db.RunTotals, runErr error) error
}

type Options struct {
	Concurrency    int
	AdapterTimeout time.Duration
	Trigger        string
}

type Runner struct {
	persister Persister
	hydrator  Hydrator
	ledger    Ledger
	logger    zerolog.Logger
	opts      Options
}

// New builds a runner. ledger may be nil.
func New(persister Persister, hydrator Hydrator, ledger Ledger, logger zerolog.Logger, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Trigger == "" {
		opts.Trigger = "cli"
	}
	return &Runner{
		persister: persister,
		hydrator:  hydrator,
		ledger:    ledger,
		logger:    logger,
		opts:      opts,
	}
}

// AdapterReport is the outcome of one adapter's pipeline.
type AdapterReport struct {
	AdapterID     string
	Fetched       int
	Kept          int
	Inserted      int
	Linked        int
	Hydrated      int
	HydrateFailed int
	Elapsed       time.Duration
	Err           error
}

type Summary struct {
	RunID    int64
	RunUUID  string
	Adapters []AdapterReport
	Totals   db.RunTotals
	Elapsed  time.Duration
}

// Run processes every adapter. A failing adapter is logged and the run moves
// on; only setup failures are returned.
func (r *Runner) Run(ctx context.Context, adapters []adapter.Adapter) (Summary, error) {
	if r == nil || r.persister == nil {
		return Summary{}, fmt.Errorf("runner is not initialized")
	}

	started := globaltime.Now()
	summary := Summary{Adapters: make([]AdapterReport, len(adapters))}

	if r.ledger != nil {
		runID, runUUID, err := r.ledger.StartIngestRun(ctx, r.opts.Trigger)
		if err != nil {
			r.logger.Warn().Err(err).Msg("ingest run ledger unavailable")
		} else {
			summary.RunID, summary.RunUUID = runID, runUUID
		}
	}

	runErr := r.runAdapters(ctx, adapters, summary.Adapters)
	summary.Totals = totals(summary.Adapters)
	summary.Elapsed = globaltime.Since(started)

	if r.ledger != nil && summary.RunID != 0 {
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := r.ledger.FinishIngestRun(finishCtx, summary.RunID, summary.Totals, runErr); err != nil {
			r.logger.Warn().Err(err).Int64("run_id", summary.RunID).Msg("failed to finish ingest run")
		}
		cancel()
	}

	event := r.logger.Info()
	if runErr != nil {
		event = r.logger.Error().Err(runErr)
	}
	event.
		Str("run_uuid", summary.RunUUID).
		Int("adapters", summary.Totals.AdaptersTotal).
		Int("adapters_failed", summary.Totals.AdaptersFailed).
		Int("fetched", summary.Totals.ItemsFetched).
		Int("kept", summary.Totals.ItemsKept).
		Int("inserted", summary.Totals.ItemsInserted).
		Int("linked", summary.Totals.LinksCreated).
		Int("hydrated", summary.Totals.Hydrated).
		Dur("elapsed", summary.Elapsed).
		Msg("ingest run finished")

	return summary, runErr
}

func (r *Runner) runAdapters(ctx context.Context, adapters []adapter.Adapter, reports []AdapterReport) error {
	if len(adapters) == 0 {
		r.logger.Warn().Msg("no adapters to run")
		return nil
	}

	m, err := r.persister.LoadMatcher(ctx)
	if err != nil {
		return fmt.Errorf("load watches: %w", err)
	}
	if m.Len() == 0 {
		r.logger.Warn().Msg("no enabled watches; every fetched article will be dropped")
	}

	// Goroutines never return errors so one adapter cannot cancel the others.
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, a := range adapters {
		g.Go(func() error {
			reports[i] = r.runAdapter(ctx, a, m)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ingest run interrupted: %w", err)
	}
	return nil
}

func (r *Runner) runAdapter(ctx context.Context, a adapter.Adapter, m *matcher.Matcher) (report AdapterReport) {
	report.AdapterID = a.ID()
	logger := r.logger.With().Str("adapter_id", report.AdapterID).Logger()
	started := globaltime.Now()

	defer func() {
		if recovered := recover(); recovered != nil {
			report.Err = fmt.Errorf("adapter %s panicked: %v", report.AdapterID, recovered)
			logger.Error().Str("stack", string(debug.Stack())).Msg("recovered adapter panic")
		}
		report.Elapsed = globaltime.Since(started)
		if report.Err != nil {
			logger.Error().Err(report.Err).Dur("elapsed", report.Elapsed).Msg("adapter failed")
		}
	}()

	if err := ctx.Err(); err != nil {
		report.Err = err
		return report
	}

	adapterCtx := ctx
	if r.opts.AdapterTimeout > 0 {
		var cancel context.CancelFunc
		adapterCtx, cancel = context.WithTimeout(ctx, r.opts.AdapterTimeout)
		defer cancel()
	}

	items, err := a.FetchBatch(adapterCtx)
	if err != nil {
		report.Err = fmt.Errorf("fetch batch: %w", err)
		return report
	}
	report.Fetched = len(items)

	result, err := r.persister.Persist(adapterCtx, report.AdapterID, m, items)
	if err != nil {
		report.Err = fmt.Errorf("persist batch: %w", err)
		return report
	}
	report.Kept = result.Kept
	report.Inserted = result.Inserted
	report.Linked = result.NewLinks

	logger.Info().
		Int("fetched", report.Fetched).
		Int("kept", report.Kept).
		Int("inserted", report.Inserted).
		Int("linked", result.Linked).
		Int("hydrate_targets", len(result.HydrateTargets)).
		Msg("adapter batch persisted")

	if len(result.HydrateTargets) > 0 && r.hydrator != nil {
		// Targets carry their own fetch deadlines; the adapter deadline covers fetch and persist only.
		batch := r.hydrator.HydrateAll(ctx, result.HydrateTargets)
		report.Hydrated = batch.Hydrated
		report.HydrateFailed = batch.Failed
	}
	return report
}

func totals(reports []AdapterReport) db.RunTotals {
	t := db.RunTotals{AdaptersTotal: len(reports)}
	for _, rep := range reports {
		if rep.Err != nil {
			t.AdaptersFailed++
		}
		t.ItemsFetched += rep.Fetched
		t.ItemsKept += rep.Kept
		t.ItemsInserted += rep.Inserted
		t.LinksCreated += rep.Linked
		t.Hydrated += rep.Hydrated
		t.HydrateFailed += rep.HydrateFailed
	}
	return t
}

// Failed reports whether any adapter failed.
func (s Summary) Failed() bool {
	return s.Totals.AdaptersFailed > 0
}

// Errors returns the adapter failures joined together.
func (s Summary) Errors() error {
	var errs []error
	for _, rep := range s.Adapters {
		if rep.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rep.AdapterID, rep.Err))
		}
	}
	return errors.Join(errs...)
}
