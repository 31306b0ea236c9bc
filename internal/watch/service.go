// Package watch is the create/update boundary for subject watches. Every
// change re-resolves the watch's feed links.
package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/adapter"
	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/feedresolve"
)

var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrWatchNotFound   = errors.New("watch not found")
	ErrInvalidInput    = errors.New("invalid watch input")
)

// TxBeginner is satisfied by *db.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts db.TxOptions) (db.Tx, error)
}

type Options struct {
	DefaultFeedURL string
	FeedLimit      int
}

type Service struct {
	pool   TxBeginner
	logger zerolog.Logger
	opts   Options
}

func NewService(pool TxBeginner, logger zerolog.Logger, opts Options) *Service {
	if opts.FeedLimit <= 0 {
		opts.FeedLimit = feedresolve.DefaultLimit
	}
	return &Service{pool: pool, logger: logger, opts: opts}
}

// CreateInput identifies the subject by id, or by name and type.
type CreateInput struct {
	SubjectID   int64
	SubjectName string
	SubjectType string
	Query       string
	// FeedURLs are linked in addition to resolved feeds; unknown URLs are added to the catalog.
	FeedURLs []string
}

type UpdateInput struct {
	WatchUUID string
	Query     string
	Enabled   *bool
	FeedURLs  []string
}

// Result describes a watch after a create or update.
type Result struct {
	WatchID        int64   `json:"watch_id"`
	WatchUUID      string  `json:"watch_uuid"`
	SubjectID      int64   `json:"subject_id"`
	SubjectSlug    string  `json:"subject_slug"`
	SubjectName    string  `json:"subject_name"`
	Query          string  `json:"query"`
	Enabled        bool    `json:"enabled"`
	FeedIDs        []int64 `json:"feed_ids"`
	SubjectCreated bool    `json:"subject_created"`
}

type subjectRow struct {
	id      int64
	slug    string
	name    string
	created bool
}

func (s *Service) CreateWatch(ctx context.Context, in CreateInput) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("watch service is not initialized")
	}
	if in.SubjectID <= 0 && strings.TrimSpace(in.SubjectName) == "" {
		return Result{}, fmt.Errorf("%w: subject id or name is required", ErrInvalidInput)
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var subject subjectRow
	if in.SubjectID > 0 {
		subject, err = loadSubject(ctx, tx, in.SubjectID)
	} else {
		subject, err = ensureSubject(ctx, tx, in.SubjectName, in.SubjectType)
	}
	if err != nil {
		return Result{}, err
	}

	query := strings.TrimSpace(in.Query)
	if query == "" {
		query = DefaultQuery(subject.name)
	}

	const insertWatch = `
		INSERT INTO track.watches (subject_id, query, enabled)
		VALUES ($1, $2, true)
		RETURNING watch_id, watch_uuid::text
	`
	result := Result{
		SubjectID:      subject.id,
		SubjectSlug:    subject.slug,
		SubjectName:    subject.name,
		Query:          query,
		Enabled:        true,
		SubjectCreated: subject.created,
	}
	if err := tx.QueryRow(ctx, insertWatch, subject.id, query).Scan(&result.WatchID, &result.WatchUUID); err != nil {
		return Result{}, fmt.Errorf("insert watch: %w", err)
	}

	feedIDs, err := s.attachFeeds(ctx, tx, result.WatchID, subject.name, query, in.FeedURLs)
	if err != nil {
		return Result{}, err
	}
	result.FeedIDs = feedIDs

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info().
		Int64("watch_id", result.WatchID).
		Int64("subject_id", result.SubjectID).
		Bool("subject_created", result.SubjectCreated).
		Int("feeds", len(result.FeedIDs)).
		Msg("watch created")
	return result, nil
}

// UpdateWatch changes the query or enabled flag and replaces the feed links.
// A blank query keeps the current one.
func (s *Service) UpdateWatch(ctx context.Context, in UpdateInput) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("watch service is not initialized")
	}
	watchUUID := strings.TrimSpace(in.WatchUUID)
	if watchUUID == "" {
		return Result{}, fmt.Errorf("%w: watch uuid is required", ErrInvalidInput)
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const update = `
		UPDATE track.watches w
		SET
			query = COALESCE(NULLIF(btrim($2), ''), w.query),
			enabled = COALESCE($3::boolean, w.enabled),
			updated_at = now()
		FROM track.subjects s
		WHERE w.watch_uuid::text = $1
		  AND s.subject_id = w.subject_id
		RETURNING w.watch_id, w.watch_uuid::text, w.subject_id, s.slug, s.name, w.query, w.enabled
	`

	var result Result
	err = tx.QueryRow(ctx, update, watchUUID, in.Query, in.Enabled).Scan(
		&result.WatchID,
		&result.WatchUUID,
		&result.SubjectID,
		&result.SubjectSlug,
		&result.SubjectName,
		&result.Query,
		&result.Enabled,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrWatchNotFound, watchUUID)
		}
		return Result{}, fmt.Errorf("update watch: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM track.watch_feeds WHERE watch_id = $1`, result.WatchID); err != nil {
		return Result{}, fmt.Errorf("delete watch feeds: %w", err)
	}

	feedIDs, err := s.attachFeeds(ctx, tx, result.WatchID, result.SubjectName, result.Query, in.FeedURLs)
	if err != nil {
		return Result{}, err
	}
	result.FeedIDs = feedIDs

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info().
		Int64("watch_id", result.WatchID).
		Bool("enabled", result.Enabled).
		Int("feeds", len(result.FeedIDs)).
		Msg("watch updated")
	return result, nil
}

func (s *Service) attachFeeds(ctx context.Context, tx db.Tx, watchID int64, subjectName, query string, extraURLs []string) ([]int64, error) {
	resolver := feedresolve.New(feedresolve.NewPgCatalog(tx, s.opts.DefaultFeedURL), s.logger)
	resolved, err := resolver.Resolve(ctx, subjectName, query, s.opts.FeedLimit)
	if err != nil {
		return nil, fmt.Errorf("resolve feeds for watch %d: %w", watchID, err)
	}

	explicit, err := ensureFeeds(ctx, tx, extraURLs)
	if err != nil {
		return nil, err
	}

	feedIDs := mergeFeedIDs(explicit, resolved)
	if err := linkFeeds(ctx, tx, watchID, feedIDs); err != nil {
		return nil, err
	}
	return feedIDs, nil
}

func loadSubject(ctx context.Context, q db.Querier, subjectID int64) (subjectRow, error) {
	const query = `SELECT subject_id, slug, name FROM track.subjects WHERE subject_id = $1`

	var row subjectRow
	if err := q.QueryRow(ctx, query, subjectID).Scan(&row.id, &row.slug, &row.name); err != nil {
		if db.IsNoRows(err) {
			return subjectRow{}, fmt.Errorf("%w: %d", ErrSubjectNotFound, subjectID)
		}
		return subjectRow{}, fmt.Errorf("load subject: %w", err)
	}
	return row, nil
}

func ensureSubject(ctx context.Context, q db.Querier, name, rawType string) (subjectRow, error) {
	name = strings.Join(strings.Fields(name), " ")
	subjectType, err := ParseSubjectType(rawType)
	if err != nil {
		return subjectRow{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	slug := SubjectSlug(name, subjectType)
	if slug == "" {
		return subjectRow{}, fmt.Errorf("%w: subject name %q has no usable characters", ErrInvalidInput, name)
	}

	// xmax = 0 only for freshly inserted rows.
	const upsert = `
		INSERT INTO track.subjects (slug, name, type)
		VALUES ($1, $2, $3::track.subject_type)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, updated_at = now()
		RETURNING subject_id, slug, name, (xmax = 0)
	`

	var row subjectRow
	if err := q.QueryRow(ctx, upsert, slug, name, string(subjectType)).Scan(&row.id, &row.slug, &row.name, &row.created); err != nil {
		return subjectRow{}, fmt.Errorf("upsert subject %q: %w", slug, err)
	}
	return row, nil
}

// ensureFeeds returns ids for explicit feed URLs, adding unknown ones to the
// catalog. Guardian content API URLs become api feeds.
func ensureFeeds(ctx context.Context, q db.Querier, urls []string) ([]int64, error) {
	unique := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	kinds := make([]string, len(unique))
	keys := make([]string, len(unique))
	for i, u := range unique {
		kinds[i], keys[i] = inferFeedKind(u)
	}

	const insert = `
		INSERT INTO track.feeds (url, kind, adapter_key)
		SELECT u.url, u.kind::track.feed_kind, NULLIF(u.adapter_key, '')
		FROM unnest($1::text[], $2::text[], $3::text[]) AS u(url, kind, adapter_key)
		ON CONFLICT (url) DO NOTHING
	`
	if _, err := q.Exec(ctx, insert, pq.StringArray(unique), pq.StringArray(kinds), pq.StringArray(keys)); err != nil {
		return nil, fmt.Errorf("insert feeds: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT feed_id, url FROM track.feeds WHERE url = ANY($1)`, pq.StringArray(unique))
	if err != nil {
		return nil, fmt.Errorf("select feeds: %w", err)
	}
	defer rows.Close()

	byURL := make(map[string]int64, len(unique))
	for rows.Next() {
		var (
			id  int64
			url string
		)
		if err := rows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		byURL[url] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}

	ids := make([]int64, 0, len(unique))
	for _, u := range unique {
		if id, ok := byURL[u]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func inferFeedKind(feedURL string) (string, string) {
	if strings.Contains(strings.ToLower(feedURL), "content.guardianapis.com") {
		return string(adapter.KindAPI), adapter.GuardianAdapterKey
	}
	return string(adapter.KindRSS), ""
}

func linkFeeds(ctx context.Context, q db.Querier, watchID int64, feedIDs []int64) error {
	if len(feedIDs) == 0 {
		return nil
	}
	const insert = `
		INSERT INTO track.watch_feeds (watch_id, feed_id, rank)
		SELECT $1::bigint, f.feed_id, f.ord - 1
		FROM unnest($2::bigint[]) WITH ORDINALITY AS f(feed_id, ord)
		ON CONFLICT (watch_id, feed_id) DO NOTHING
	`
	if _, err := q.Exec(ctx, insert, watchID, pq.Int64Array(feedIDs)); err != nil {
		return fmt.Errorf("link watch %d feeds: %w", watchID, err)
	}
	return nil
}

// mergeFeedIDs keeps order and drops repeats. Explicit feeds rank first.
func mergeFeedIDs(lists ...[]int64) []int64 {
	seen := map[int64]struct{}{}
	var out []int64
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
