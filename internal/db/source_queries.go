package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// UntitledPlaceholder is stored when a feed item carries no title.
const UntitledPlaceholder = "Untitled"

// HydrationTarget is a persisted source that still lacks article text.
type HydrationTarget struct {
	SourceID int64
	URL      string
}

// SourceMeta is the feed-supplied metadata hydration must not clobber.
type SourceMeta struct {
	SourceID int64
	URL      string
	Title    string
	Author   *string
	Excerpt  *string
	Language *string
}

// HydrationWrite is the outcome of one successful hydration.
// Author, Excerpt, Title and Language are only applied to unset columns.
type HydrationWrite struct {
	SourceID  int64
	Text      string
	HTML      *string
	WordCount int
	TextHash  string
	Sentiment float64
	Author    *string
	Excerpt   *string
	Title     *string
	Language  *string
}

func (p *Pool) LoadSourceMeta(ctx context.Context, sourceID int64) (SourceMeta, error) {
	const q = `
		SELECT source_id, url, title, author, excerpt, language
		FROM track.sources
		WHERE source_id = $1
	`

	var meta SourceMeta
	if err := p.QueryRow(ctx, q, sourceID).Scan(
		&meta.SourceID,
		&meta.URL,
		&meta.Title,
		&meta.Author,
		&meta.Excerpt,
		&meta.Language,
	); err != nil {
		return SourceMeta{}, err
	}
	return meta, nil
}

// SaveHydration upserts the article text and enriches the source row in one transaction.
func (p *Pool) SaveHydration(ctx context.Context, w HydrationWrite) error {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin hydration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const upsertText = `
		INSERT INTO track.article_texts (source_id, text, html, extracted_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (source_id) DO UPDATE
		SET
			text = EXCLUDED.text,
			html = COALESCE(EXCLUDED.html, track.article_texts.html),
			extracted_at = now()
	`
	if _, err := tx.Exec(ctx, upsertText, w.SourceID, w.Text, w.HTML); err != nil {
		return fmt.Errorf("upsert article text: %w", err)
	}

	const updateSource = `
		UPDATE track.sources
		SET
			word_count = $2,
			text_hash = $3,
			sentiment = $4,
			author = CASE WHEN NULLIF(btrim(author), '') IS NULL THEN COALESCE($5, author) ELSE author END,
			excerpt = CASE WHEN NULLIF(btrim(excerpt), '') IS NULL THEN COALESCE($6, excerpt) ELSE excerpt END,
			title = CASE WHEN NULLIF(btrim(title), '') IS NULL OR title = $9 THEN COALESCE($7, title) ELSE title END,
			language = COALESCE(NULLIF(language, ''), $8),
			updated_at = now()
		WHERE source_id = $1
	`
	tag, err := tx.Exec(ctx, updateSource,
		w.SourceID,
		w.WordCount,
		w.TextHash,
		w.Sentiment,
		w.Author,
		w.Excerpt,
		w.Title,
		w.Language,
		UntitledPlaceholder,
	)
	if err != nil {
		return fmt.Errorf("update source enrichment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %d not found", w.SourceID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit hydration tx: %w", err)
	}
	return nil
}

// CountTextHashDuplicates counts other sources already carrying hash.
func (p *Pool) CountTextHashDuplicates(ctx context.Context, hash string, excludeSourceID int64) (int64, error) {
	const q = `
		SELECT COUNT(*)
		FROM track.sources
		WHERE text_hash = $1
		  AND source_id <> $2
	`
	var n int64
	if err := p.QueryRow(ctx, q, hash, excludeSourceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count text hash duplicates: %w", err)
	}
	return n, nil
}

// ListHydrationBacklog returns the newest sources without article text.
func (p *Pool) ListHydrationBacklog(ctx context.Context, limit int) ([]HydrationTarget, error) {
	if limit <= 0 {
		limit = 15
	}

	const q = `
		SELECT s.source_id, s.url
		FROM track.sources s
		LEFT JOIN track.article_texts t ON t.source_id = s.source_id
		WHERE t.source_id IS NULL
		ORDER BY s.created_at DESC, s.source_id DESC
		LIMIT $1
	`
	return p.queryHydrationTargets(ctx, q, limit)
}

// HydrationTargetsByID resolves URLs for the given source ids, keeping ids without article text only.
func (p *Pool) HydrationTargetsByID(ctx context.Context, sourceIDs []int64) ([]HydrationTarget, error) {
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
	return p.queryHydrationTargets(ctx, q, pq.Int64Array(sourceIDs))
}

func (p *Pool) queryHydrationTargets(ctx context.Context, q string, args ...any) ([]HydrationTarget, error) {
	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query hydration targets: %w", err)
	}
	defer rows.Close()

	var targets []HydrationTarget
	for rows.Next() {
		var t HydrationTarget
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
