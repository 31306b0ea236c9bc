package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Psql builds Postgres-flavoured statements with $n placeholders.
var Psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// FeedRow is a catalog feed joined with its publication slug.
type FeedRow struct {
	FeedID          int64
	URL             string
	Kind            string
	AdapterKey      string
	Title           string
	Section         string
	PublicationID   *int64
	PublicationSlug string
	QualityScore    *float64
	Params          json.RawMessage
	Language        string
}

// FeedSeed describes a catalog feed to upsert by URL.
type FeedSeed struct {
	URL           string
	Kind          string
	AdapterKey    string
	Title         string
	Section       string
	PublicationID *int64
	QualityScore  *float64
	Params        json.RawMessage
	Language      string
}

// ListEnabledFeeds returns enabled catalog feeds, best quality first. When
// linkedOnly is set only feeds attached to an enabled watch are returned.
func (p *Pool) ListEnabledFeeds(ctx context.Context, linkedOnly bool) ([]FeedRow, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	builder := Psql.Select(
		"f.feed_id",
		"f.url",
		"f.kind::text",
		"COALESCE(f.adapter_key, '')",
		"COALESCE(f.title, '')",
		"f.section",
		"f.publication_id",
		"COALESCE(p.slug, '')",
		"f.quality_score",
		"COALESCE(f.params, '{}'::jsonb)",
		"COALESCE(f.language, '')",
	).
		From("track.feeds f").
		LeftJoin("track.publications p ON p.publication_id = f.publication_id").
		Where(sq.Eq{"f.enabled": true}).
		OrderBy("f.quality_score DESC NULLS LAST", "f.feed_id")

	if linkedOnly {
		builder = builder.Where(`EXISTS (
			SELECT 1
			FROM track.watch_feeds wf
			JOIN track.watches w ON w.watch_id = wf.watch_id
			WHERE wf.feed_id = f.feed_id
			  AND w.enabled
		)`)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feed query: %w", err)
	}

	rows, err := p.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query enabled feeds: %w", err)
	}
	defer rows.Close()

	var feeds []FeedRow
	for rows.Next() {
		var (
			feed   FeedRow
			params []byte
		)
		if err := rows.Scan(
			&feed.FeedID,
			&feed.URL,
			&feed.Kind,
			&feed.AdapterKey,
			&feed.Title,
			&feed.Section,
			&feed.PublicationID,
			&feed.PublicationSlug,
			&feed.QualityScore,
			&params,
			&feed.Language,
		); err != nil {
			return nil, fmt.Errorf("scan feed row: %w", err)
		}
		feed.Params = json.RawMessage(params)
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed rows: %w", err)
	}
	return feeds, nil
}

// UpsertPublication inserts or renames a publication keyed by slug.
func UpsertPublication(ctx context.Context, q Querier, slug, name, domain string) (int64, error) {
	const stmt = `
		INSERT INTO track.publications (slug, name, domain)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name
		RETURNING publication_id
	`

	var id int64
	if err := q.QueryRow(ctx, stmt, strings.TrimSpace(slug), strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(domain))).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert publication %q: %w", slug, err)
	}
	return id, nil
}

// UpsertFeed inserts a catalog feed or refreshes its adapter settings by URL.
func UpsertFeed(ctx context.Context, q Querier, seed FeedSeed) (int64, error) {
	const stmt = `
		INSERT INTO track.feeds (
			url,
			kind,
			adapter_key,
			title,
			section,
			publication_id,
			quality_score,
			params,
			language
		)
		VALUES ($1, $2::track.feed_kind, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8::jsonb, NULLIF($9, ''))
		ON CONFLICT (url) DO UPDATE
		SET
			kind = EXCLUDED.kind,
			adapter_key = EXCLUDED.adapter_key,
			title = COALESCE(EXCLUDED.title, track.feeds.title),
			section = EXCLUDED.section,
			publication_id = COALESCE(EXCLUDED.publication_id, track.feeds.publication_id),
			quality_score = COALESCE(EXCLUDED.quality_score, track.feeds.quality_score),
			params = EXCLUDED.params,
			language = COALESCE(EXCLUDED.language, track.feeds.language),
			updated_at = now()
		RETURNING feed_id
	`

	params := string(seed.Params)
	if strings.TrimSpace(params) == "" {
		params = "{}"
	}
	section := strings.TrimSpace(seed.Section)
	if section == "" {
		section = "news"
	}

	var id int64
	if err := q.QueryRow(ctx, stmt,
		strings.TrimSpace(seed.URL),
		strings.TrimSpace(seed.Kind),
		strings.TrimSpace(seed.AdapterKey),
		strings.TrimSpace(seed.Title),
		section,
		seed.PublicationID,
		seed.QualityScore,
		params,
		strings.TrimSpace(seed.Language),
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert feed %q: %w", seed.URL, err)
	}
	return id, nil
}
