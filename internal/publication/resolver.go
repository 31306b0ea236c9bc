package publication

import (
	"context"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"github.com/KasiaMirowska/shift-track/internal/db"
)

// Dedupe collapses hints by slug, keeping the first occurrence. Blank slugs are dropped.
func Dedupe(hints []Hint) []Hint {
	seen := make(map[string]struct{}, len(hints))
	out := make([]Hint, 0, len(hints))
	for _, h := range hints {
		h = h.withDefaults()
		if h.Slug == "" {
			continue
		}
		if _, ok := seen[h.Slug]; ok {
			continue
		}
		seen[h.Slug] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Ensure returns slug -> publication_id for hints, inserting missing
// publications. Conflicts from concurrent writers are ignored and re-read.
// A hint whose domain already belongs to another slug is left unresolved.
func Ensure(ctx context.Context, q db.Querier, hints []Hint) (map[string]int64, error) {
	hints = Dedupe(hints)
	ids := make(map[string]int64, len(hints))
	if len(hints) == 0 {
		return ids, nil
	}

	slugs := make([]string, 0, len(hints))
	for _, h := range hints {
		slugs = append(slugs, h.Slug)
	}
	sort.Strings(slugs)

	if err := loadPublicationIDs(ctx, q, slugs, ids); err != nil {
		return nil, err
	}

	const insert = `
		INSERT INTO track.publications (slug, name, domain)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`
	var missing []string
	for _, h := range hints {
		if _, ok := ids[h.Slug]; ok {
			continue
		}
		if _, err := q.Exec(ctx, insert, h.Slug, h.Name, h.Domain); err != nil {
			return nil, fmt.Errorf("insert publication %q: %w", h.Slug, err)
		}
		missing = append(missing, h.Slug)
	}

	if len(missing) > 0 {
		if err := loadPublicationIDs(ctx, q, missing, ids); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func loadPublicationIDs(ctx context.Context, q db.Querier, slugs []string, into map[string]int64) error {
	const query = `
		SELECT slug, publication_id
		FROM track.publications
		WHERE slug = ANY($1)
	`
	rows, err := q.Query(ctx, query, pq.StringArray(slugs))
	if err != nil {
		return fmt.Errorf("query publications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			slug string
			id   int64
		)
		if err := rows.Scan(&slug, &id); err != nil {
			return fmt.Errorf("scan publication: %w", err)
		}
		into[slug] = id
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate publications: %w", err)
	}
	return nil
}
