// Package persist is the transactional write path for matched articles.
package persist

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/globaltime"
	"github.com/KasiaMirowska/shift-track/internal/matcher"
	"github.com/KasiaMirowska/shift-track/internal/publication"
)

const DefaultBatchSize = 25

// Result summarizes one adapter batch.
type Result struct {
	AdapterID      string
	Fetched        int
	Kept           int
	Inserted       int
	Linked         int
	NewLinks       int
	Events         int
	HydrateTargets []db.HydrationTarget
}

type Engine struct {
	pool      *db.Pool
	logger    zerolog.Logger
	batchSize int
}

func NewEngine(pool *db.Pool, logger zerolog.Logger, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		pool:      pool,
		logger:    logger,
		batchSize: batchSize,
	}
}

// LoadMatcher compiles the currently enabled watches.
func (e *Engine) LoadMatcher(ctx context.Context) (*matcher.Matcher, error) {
	if e == nil || e.pool == nil {
		return nil, fmt.Errorf("persist engine is not initialized")
	}

	const q = `
		SELECT w.watch_id, w.subject_id, w.query
		FROM track.watches w
		WHERE w.enabled
		  AND btrim(w.query) <> ''
		ORDER BY w.watch_id
	`
	rows, err := e.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query enabled watches: %w", err)
	}
	defer rows.Close()

	var watches []matcher.Watch
	for rows.Next() {
		var w matcher.Watch
		if err := rows.Scan(&w.WatchID, &w.SubjectID, &w.Query); err != nil {
			return nil, fmt.Errorf("scan watch: %w", err)
		}
		watches = append(watches, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watches: %w", err)
	}
	return matcher.New(watches), nil
}

// Persist matches items against m and writes the survivors atomically.
func (e *Engine) Persist(ctx context.Context, adapterID string, m *matcher.Matcher, items []article.Normalized) (Result, error) {
	candidates := m.Filter(items)
	result, err := e.PersistCandidates(ctx, adapterID, candidates)
	result.Fetched = len(items)
	return result, err
}

// PersistCandidates runs the dedup write for already-matched candidates in one transaction.
func (e *Engine) PersistCandidates(ctx context.Context, adapterID string, candidates []article.Candidate) (Result, error) {
	result := Result{AdapterID: adapterID, Fetched: len(candidates)}
	if e == nil || e.pool == nil {
		return result, fmt.Errorf("persist engine is not initialized")
	}

	items := prepareCandidates(candidates, globaltime.UTC())
	result.Kept = len(items)
	if len(items) == 0 {
		return result, nil
	}
	urls := preparedURLs(items)
	logger := e.logger.With().Str("adapter_id", adapterID).Logger()

	tx, err := e.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return result, fmt.Errorf("begin persist tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	existedBefore, err := existingURLs(ctx, tx, urls)
	if err != nil {
		return result, err
	}

	publicationIDs, err := publication.Ensure(ctx, tx, preparedHints(items))
	if err != nil {
		return result, fmt.Errorf("resolve publications: %w", err)
	}

	insertedNow := make(map[string]struct{}, len(items))
	for batchIndex, batch := range chunk(items, e.batchSize) {
		if err := e.insertSourceBatch(ctx, tx, logger, batchIndex, batch, publicationIDs, insertedNow); err != nil {
			return result, err
		}
	}
	result.Inserted = len(insertedNow)

	sourceIDs, err := sourceIDsByURL(ctx, tx, urls)
	if err != nil {
		return result, err
	}

	linked, newLinks, err := linkSubjects(ctx, tx, logger, buildPairs(items, sourceIDs))
	if err != nil {
		return result, err
	}
	result.Linked = linked
	result.NewLinks = newLinks

	events, err := buildEvents(adapterID, items, existedBefore, insertedNow, sourceIDs)
	if err != nil {
		return result, fmt.Errorf("build ingestion events: %w", err)
	}
	for _, batch := range chunk(events, e.batchSize) {
		if err := insertEvents(ctx, tx, batch); err != nil {
			return result, err
		}
	}
	result.Events = len(events)

	ids := make([]int64, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		ids = append(ids, id)
	}
	targets, err := hydrationTargets(ctx, tx, ids)
	if err != nil {
		return result, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit persist tx: %w", err)
	}
	result.HydrateTargets = targets

	logger.Info().
		Int("fetched", result.Fetched).
		Int("kept", result.Kept).
		Int("inserted", result.Inserted).
		Int("linked", result.Linked).
		Int("new_links", result.NewLinks).
		Int("hydrate_targets", len(targets)).
		Msg("persisted adapter batch")
	return result, nil
}

func existingURLs(ctx context.Context, tx db.Tx, urls []string) (map[string]struct{}, error) {
	const q = `SELECT url FROM track.sources WHERE url = ANY($1)`
	rows, err := tx.Query(ctx, q, pq.StringArray(urls))
	if err != nil {
		return nil, fmt.Errorf("snapshot existing sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{}, len(urls))
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan existing source: %w", err)
		}
		out[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing sources: %w", err)
	}
	return out, nil
}

func (e *Engine) insertSourceBatch(
	ctx context.Context,
	tx db.Tx,
	logger zerolog.Logger,
	batchIndex int,
	batch []prepared,
	publicationIDs map[string]int64,
	insertedNow map[string]struct{},
) error {
	query, args, err := sourceInsertSQL(batch, publicationIDs)
	if err != nil {
		return fmt.Errorf("build source insert: %w", err)
	}

	if _, err := tx.Exec(ctx, "SAVEPOINT source_batch"); err != nil {
		return fmt.Errorf("savepoint source batch: %w", err)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err == nil {
		err = collectURLs(rows, insertedNow)
	}
	if err != nil {
		_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT source_batch")
		probeErr := probeSourceInsert(ctx, tx, batch[0], publicationIDs)
		logger.Error().
			Err(err).
			Int("batch", batchIndex).
			Int("batch_size", len(batch)).
			Str("batch_error", db.DescribeError(err)).
			Str("probe_url", batch[0].URL).
			Str("probe_error", db.DescribeError(probeErr)).
			Msg("source batch insert failed")
		return fmt.Errorf("insert source batch %d: %w", batchIndex, err)
	}

	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT source_batch"); err != nil {
		return fmt.Errorf("release source batch savepoint: %w", err)
	}
	return nil
}

func sourceInsertSQL(batch []prepared, publicationIDs map[string]int64) (string, []any, error) {
	builder := db.Psql.Insert("track.sources").
		Columns("url", "title", "publication_id", "published", "excerpt", "summary", "section", "language", "author")
	for _, p := range batch {
		a := p.Article
		builder = builder.Values(
			p.URL,
			a.Title,
			publicationID(p, publicationIDs),
			a.Published.UTC(),
			nullIfBlank(a.Excerpt),
			nullIfBlank(a.Summary),
			nullIfBlank(a.Section),
			nullIfBlank(a.Language),
			nullIfBlank(a.Author),
		)
	}
	return builder.Suffix("ON CONFLICT (url) DO NOTHING RETURNING url").ToSql()
}

// probeSourceInsert replays one row on its own so the log carries the real constraint detail.
func probeSourceInsert(ctx context.Context, tx db.Tx, p prepared, publicationIDs map[string]int64) error {
	const q = `
		INSERT INTO track.sources (url, title, published, publication_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO NOTHING
	`
	_, err := tx.Exec(ctx, q, p.URL, p.Article.Title, p.Article.Published.UTC(), publicationID(p, publicationIDs))
	return err
}

func publicationID(p prepared, ids map[string]int64) *int64 {
	if !p.HasHint {
		return nil
	}
	id, ok := ids[p.Hint.Slug]
	if !ok {
		return nil
	}
	return &id
}

func collectURLs(rows *db.Rows, into map[string]struct{}) error {
	defer rows.Close()
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return err
		}
		into[url] = struct{}{}
	}
	return rows.Err()
}

func sourceIDsByURL(ctx context.Context, tx db.Tx, urls []string) (map[string]int64, error) {
	const q = `SELECT source_id, url FROM track.sources WHERE url = ANY($1)`
	rows, err := tx.Query(ctx, q, pq.StringArray(urls))
	if err != nil {
		return nil, fmt.Errorf("resolve source ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64, len(urls))
	for rows.Next() {
		var (
			id  int64
			url string
		)
		if err := rows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("scan source id: %w", err)
		}
		out[url] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source ids: %w", err)
	}
	return out, nil
}

// linkSubjects verifies both ends of every pair still exist, logs and drops
// dangling pairs, then inserts the rest ignoring existing links.
func linkSubjects(ctx context.Context, tx db.Tx, logger zerolog.Logger, pairs []pair) (int, int, error) {
	if len(pairs) == 0 {
		return 0, 0, nil
	}

	subjectSet := make(map[int64]struct{})
	sourceSet := make(map[int64]struct{})
	for _, p := range pairs {
		subjectSet[p.SubjectID] = struct{}{}
		sourceSet[p.SourceID] = struct{}{}
	}

	liveSubjects, err := existingIDs(ctx, tx, `SELECT subject_id FROM track.subjects WHERE subject_id = ANY($1)`, setKeys(subjectSet))
	if err != nil {
		return 0, 0, fmt.Errorf("verify subjects: %w", err)
	}
	liveSources, err := existingIDs(ctx, tx, `SELECT source_id FROM track.sources WHERE source_id = ANY($1)`, setKeys(sourceSet))
	if err != nil {
		return 0, 0, fmt.Errorf("verify sources: %w", err)
	}

	kept, dropped := splitPairs(pairs, liveSubjects, liveSources)
	for _, p := range dropped {
		logger.Warn().
			Int64("subject_id", p.SubjectID).
			Int64("source_id", p.SourceID).
			Msg("dropping subject link with missing foreign key")
	}
	if len(kept) == 0 {
		return 0, 0, nil
	}

	const q = `
		INSERT INTO track.subject_sources (subject_id, source_id)
		SELECT v.subject_id, v.source_id
		FROM unnest($1::bigint[], $2::bigint[]) AS v(subject_id, source_id)
		JOIN track.subjects s ON s.subject_id = v.subject_id
		JOIN track.sources src ON src.source_id = v.source_id
		ON CONFLICT (subject_id, source_id) DO NOTHING
	`
	subjectIDs, sourceIDs := pairColumns(kept)
	tag, err := tx.Exec(ctx, q, pq.Int64Array(subjectIDs), pq.Int64Array(sourceIDs))
	if err != nil {
		return 0, 0, fmt.Errorf("insert subject sources: %w", err)
	}
	return len(kept), int(tag.RowsAffected()), nil
}

func existingIDs(ctx context.Context, tx db.Tx, q string, ids []int64) (map[int64]struct{}, error) {
	rows, err := tx.Query(ctx, q, pq.Int64Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func insertEvents(ctx context.Context, tx db.Tx, events []eventRow) error {
	if len(events) == 0 {
		return nil
	}

	builder := db.Psql.Insert("track.ingestion_events").
		Columns("source_url", "status", "detail", "source_id")
	for _, ev := range events {
		builder = builder.Values(
			ev.SourceURL,
			sq.Expr("?::track.ingestion_status", ev.Status),
			sq.Expr("?::jsonb", string(ev.Detail)),
			ev.SourceID,
		)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build ingestion event insert: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert ingestion events: %w", err)
	}
	return nil
}

func hydrationTargets(ctx context.Context, tx db.Tx, sourceIDs []int64) ([]db.HydrationTarget, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}

	const q = `
		SELECT s.source_id, s.url
		FROM track.sources s
		WHERE s.source_id = ANY($1)
		  AND NOT EXISTS (
			SELECT 1 FROM track.article_texts t WHERE t.source_id = s.source_id
		  )
		ORDER BY s.source_id
	`
	rows, err := tx.Query(ctx, q, pq.Int64Array(sourceIDs))
	if err != nil {
		return nil, fmt.Errorf("query hydration targets: %w", err)
	}
	defer rows.Close()

	var targets []db.HydrationTarget
	for rows.Next() {
		var t db.HydrationTarget
		if err := rows.Scan(&t.SourceID, &t.URL); err != nil {
			return nil, fmt.Errorf("scan hydration target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hydration targets: %w", err)
	}
	return targets, nil
}
