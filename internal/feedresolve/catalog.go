package feedresolve

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/KasiaMirowska/shift-track/internal/db"
)

// PgCatalog reads enabled feeds from track.feeds.
type PgCatalog struct {
	q              db.Querier
	defaultFeedURL string
}

func NewPgCatalog(q db.Querier, defaultFeedURL string) *PgCatalog {
	return &PgCatalog{q: q, defaultFeedURL: strings.TrimSpace(defaultFeedURL)}
}

func (c *PgCatalog) SectionCandidates(ctx context.Context, sections []string, limit int) ([]Candidate, error) {
	if len(sections) == 0 {
		return nil, nil
	}
	return c.selectCandidates(ctx, sq.Eq{"section": sections}, limit)
}

func (c *PgCatalog) TitleCandidates(ctx context.Context, haystack string, limit int) ([]Candidate, error) {
	if strings.TrimSpace(haystack) == "" {
		return nil, nil
	}
	return c.selectCandidates(ctx, sq.Expr(`title ILIKE ? ESCAPE '\'`, "%"+escapeLike(haystack)+"%"), limit)
}

func (c *PgCatalog) selectCandidates(ctx context.Context, where sq.Sqlizer, limit int) ([]Candidate, error) {
	query, args, err := db.Psql.
		Select("feed_id", "quality_score").
		From("track.feeds").
		Where(sq.Eq{"enabled": true}).
		Where(where).
		OrderBy("quality_score DESC NULLS LAST", "feed_id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feed query: %w", err)
	}

	rows, err := c.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var cand Candidate
		if err := rows.Scan(&cand.FeedID, &cand.Score); err != nil {
			return nil, fmt.Errorf("scan feed candidate: %w", err)
		}
		out = append(out, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed candidates: %w", err)
	}
	return out, nil
}

// DefaultFeedID returns the fallback feed, inserting it when the catalog was
// never seeded.
func (c *PgCatalog) DefaultFeedID(ctx context.Context) (int64, error) {
	if c.defaultFeedURL == "" {
		return 0, fmt.Errorf("default feed url is not configured")
	}

	query, args, err := db.Psql.
		Select("feed_id").
		From("track.feeds").
		Where(sq.Eq{"url": c.defaultFeedURL}).
		Limit(1).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build default feed query: %w", err)
	}

	var id int64
	err = c.q.QueryRow(ctx, query, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !db.IsNoRows(err) {
		return 0, fmt.Errorf("select default feed: %w", err)
	}

	id, err = db.UpsertFeed(ctx, c.q, db.FeedSeed{
		URL:      c.defaultFeedURL,
		Kind:     "rss",
		Title:    "Default feed",
		Section:  "politics",
		Language: "en",
	})
	if err != nil {
		return 0, fmt.Errorf("insert default feed: %w", err)
	}
	return id, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
