package db

import (
	"context"
	"fmt"
	"strings"
)

// RunTotals are the counters recorded when an ingest run finishes.
type RunTotals struct {
	AdaptersTotal  int
	AdaptersFailed int
	ItemsFetched   int
	ItemsKept      int
	ItemsInserted  int
	LinksCreated   int
	Hydrated       int
	HydrateFailed  int
}

func (p *Pool) StartIngestRun(ctx context.Context, trigger string) (int64, string, error) {
	const q = `
		INSERT INTO track.ingest_runs (trigger, status, started_at)
		VALUES ($1, 'running', now())
		RETURNING run_id, run_uuid::text
	`

	var (
		runID   int64
		runUUID string
	)
	if err := p.QueryRow(ctx, q, strings.TrimSpace(trigger)).Scan(&runID, &runUUID); err != nil {
		return 0, "", fmt.Errorf("insert ingest run: %w", err)
	}
	return runID, runUUID, nil
}

// FinishIngestRun marks the run completed, or failed when runErr is non-nil.
func (p *Pool) FinishIngestRun(ctx context.Context, runID int64, totals RunTotals, runErr error) error {
	const q = `
		UPDATE track.ingest_runs
		SET
			status = $2::track.ingest_run_status,
			finished_at = now(),
			adapters_total = $3,
			adapters_failed = $4,
			items_fetched = $5,
			items_kept = $6,
			items_inserted = $7,
			links_created = $8,
			hydrated = $9,
			hydrate_failed = $10,
			error_message = $11
		WHERE run_id = $1
	`

	status := "completed"
	var message *string
	if runErr != nil {
		status = "failed"
		msg := runErr.Error()
		message = &msg
	}

	if _, err := p.Exec(ctx, q,
		runID,
		status,
		totals.AdaptersTotal,
		totals.AdaptersFailed,
		totals.ItemsFetched,
		totals.ItemsKept,
		totals.ItemsInserted,
		totals.LinksCreated,
		totals.Hydrated,
		totals.HydrateFailed,
		message,
	); err != nil {
		return fmt.Errorf("finish ingest run %d: %w", runID, err)
	}
	return nil
}
