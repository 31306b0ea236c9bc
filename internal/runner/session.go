package runner

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/config"
	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/globaltime"
	"github.com/KasiaMirowska/shift-track/internal/hydrate"
	"github.com/KasiaMirowska/shift-track/internal/logging"
	"github.com/KasiaMirowska/shift-track/internal/persist"
	"github.com/KasiaMirowska/shift-track/internal/reader"
)

// RunOptions are the per-invocation switches of the run command.
type RunOptions struct {
	Static      bool
	LinkedOnly  bool
	Concurrency int
	Trigger     string
}

// RunOnce opens shared resources, runs every selected adapter and releases
// the resources before returning.
func RunOnce(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts RunOptions) (Summary, error) {
	res, err := Open(ctx, cfg)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close run resources")
		}
	}()

	deps := res.AdapterDeps(cfg, logging.Component(logger, "adapter"))
	adapters, origin, err := SelectAdapters(ctx, res.Pool, opts.Static || cfg.IngestStatic, opts.LinkedOnly, deps)
	if err != nil {
		return Summary{}, err
	}
	logger.Info().Str("origin", origin).Int("adapters", len(adapters)).Msg("adapters selected")

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = cfg.IngestConcurrency
	}

	engine := persist.NewEngine(res.Pool, logging.Component(logger, "persist"), cfg.SourceInsertBatchSize)
	worker := NewHydrationWorker(res, cfg, logger)
	r := New(engine, worker, res.Pool, logging.Component(logger, "runner"), Options{
		Concurrency:    concurrency,
		AdapterTimeout: cfg.IngestAdapterTimeout,
		Trigger:        opts.Trigger,
	})
	return r.Run(ctx, adapters)
}

// NewHydrationWorker wires a worker to the run's pool and HTTP client.
func NewHydrationWorker(res *Resources, cfg *config.Config, logger zerolog.Logger) *hydrate.Worker {
	return hydrate.NewWorker(res.Pool, logging.Component(logger, "hydrate"), hydrate.Options{
		Fetch: reader.FetchOptions{
			Timeout:       cfg.ArticleFetchTimeout,
			BodyByteLimit: cfg.ArticleBodyLimit,
			UserAgent:     cfg.UserAgent,
			HTTPClient:    res.HTTPClient,
		},
		DetectLanguage: true,
	})
}

// HydrateBacklog hydrates explicit source ids, or the newest sources that
// have no article text yet.
func HydrateBacklog(ctx context.Context, cfg *config.Config, logger zerolog.Logger, sourceIDs []int64, limit int) (hydrate.BatchResult, error) {
	res, err := Open(ctx, cfg)
	if err != nil {
		return hydrate.BatchResult{}, err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close hydrate resources")
		}
	}()

	var targets []db.HydrationTarget
	if len(sourceIDs) > 0 {
		targets, err = res.Pool.HydrationTargetsByID(ctx, sourceIDs)
	} else {
		if limit <= 0 {
			limit = cfg.HydrateBacklogLimit
		}
		targets, err = res.Pool.ListHydrationBacklog(ctx, limit)
	}
	if err != nil {
		return hydrate.BatchResult{}, err
	}

	started := globaltime.Now()
	result := NewHydrationWorker(res, cfg, logger).HydrateAll(ctx, targets)
	logger.Info().
		Int("targets", len(targets)).
		Int("hydrated", result.Hydrated).
		Int("failed", result.Failed).
		Dur("elapsed", globaltime.Since(started)).
		Msg("hydration backlog finished")
	return result, nil
}
