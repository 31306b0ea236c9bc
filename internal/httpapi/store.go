package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/KasiaMirowska/shift-track/internal/db"
)

var errSubjectNotFound = errors.New("subject not found")

// Store is the read side used by the API. PgStore implements it.
type Store interface {
	Ping(ctx context.Context) error
	ListSubjects(ctx context.Context) ([]SubjectSummary, error)
	SubjectDetail(ctx context.Context, slug string, page, pageSize int) (*SubjectDetail, error)
	ListIngestionEvents(ctx context.Context, limit int, status string) ([]IngestionEventItem, error)
	ListIngestRuns(ctx context.Context, limit int) ([]IngestRunItem, error)
}

type SubjectSummary struct {
	SubjectID   int64     `json:"subject_id"`
	SubjectUUID string    `json:"subject_uuid"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	WatchCount  int64     `json:"watch_count"`
	SourceCount int64     `json:"source_count"`
}

type WatchItem struct {
	WatchID   int64     `json:"watch_id"`
	WatchUUID string    `json:"watch_uuid"`
	Query     string    `json:"query"`
	Enabled   bool      `json:"enabled"`
	FeedCount int64     `json:"feed_count"`
	CreatedAt time.Time `json:"created_at"`
}

type SourceItem struct {
	SourceID        int64     `json:"source_id"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Published       time.Time `json:"published"`
	Excerpt         *string   `json:"excerpt,omitempty"`
	Author          *string   `json:"author,omitempty"`
	Section         *string   `json:"section,omitempty"`
	Language        *string   `json:"language,omitempty"`
	Sentiment       *float64  `json:"sentiment,omitempty"`
	WordCount       *int      `json:"word_count,omitempty"`
	PublicationSlug *string   `json:"publication_slug,omitempty"`
	Hydrated        bool      `json:"hydrated"`
}

type SubjectDetail struct {
	Subject      SubjectSummary `json:"subject"`
	Watches      []WatchItem    `json:"watches"`
	Sources      []SourceItem   `json:"sources"`
	TotalSources int64          `json:"total_sources"`
}

type IngestionEventItem struct {
	EventID    int64           `json:"event_id"`
	EventUUID  string          `json:"event_uuid"`
	SourceURL  string          `json:"source_url"`
	Status     string          `json:"status"`
	SourceID   *int64          `json:"source_id,omitempty"`
	Detail     json.RawMessage `json:"detail"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type IngestRunItem struct {
	RunUUID        string     `json:"run_uuid"`
	Trigger        string     `json:"trigger"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	AdaptersTotal  int        `json:"adapters_total"`
	AdaptersFailed int        `json:"adapters_failed"`
	ItemsFetched   int        `json:"items_fetched"`
	ItemsKept      int        `json:"items_kept"`
	ItemsInserted  int        `json:"items_inserted"`
	LinksCreated   int        `json:"links_created"`
	Hydrated       int        `json:"hydrated"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
}

type PgStore struct {
	pool *db.Pool
}

func NewPgStore(pool *db.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func subjectSummaryQuery() sq.SelectBuilder {
	return db.Psql.Select(
		"s.subject_id",
		"s.subject_uuid::text",
		"s.slug",
		"s.name",
		"s.type::text",
		"s.created_at",
		"(SELECT count(*) FROM track.watches w WHERE w.subject_id = s.subject_id AND w.enabled)",
		"(SELECT count(*) FROM track.subject_sources ss WHERE ss.subject_id = s.subject_id)",
	).From("track.subjects s")
}

func scanSubject(row interface{ Scan(...any) error }) (SubjectSummary, error) {
	var item SubjectSummary
	err := row.Scan(
		&item.SubjectID,
		&item.SubjectUUID,
		&item.Slug,
		&item.Name,
		&item.Type,
		&item.CreatedAt,
		&item.WatchCount,
		&item.SourceCount,
	)
	return item, err
}

func (s *PgStore) ListSubjects(ctx context.Context) ([]SubjectSummary, error) {
	query, args, err := subjectSummaryQuery().OrderBy("s.created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subjects query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	items := make([]SubjectSummary, 0)
	for rows.Next() {
		item, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return items, nil
}

func (s *PgStore) SubjectDetail(ctx context.Context, slug string, page, pageSize int) (*SubjectDetail, error) {
	query, args, err := subjectSummaryQuery().Where(sq.Eq{"s.slug": slug}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subject query: %w", err)
	}

	subject, err := scanSubject(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errSubjectNotFound
		}
		return nil, fmt.Errorf("query subject: %w", err)
	}

	detail := &SubjectDetail{Subject: subject, TotalSources: subject.SourceCount}

	watches, err := s.subjectWatches(ctx, subject.SubjectID)
	if err != nil {
		return nil, err
	}
	detail.Watches = watches

	sources, err := s.subjectSources(ctx, subject.SubjectID, page, pageSize)
	if err != nil {
		return nil, err
	}
	detail.Sources = sources
	return detail, nil
}

func (s *PgStore) subjectWatches(ctx context.Context, subjectID int64) ([]WatchItem, error) {
	const q = `
		SELECT
			w.watch_id,
			w.watch_uuid::text,
			w.query,
			w.enabled,
			(SELECT count(*) FROM track.watch_feeds wf WHERE wf.watch_id = w.watch_id),
			w.created_at
		FROM track.watches w
		WHERE w.subject_id = $1
		ORDER BY w.created_at ASC
	`

	rows, err := s.pool.Query(ctx, q, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query watches: %w", err)
	}
	defer rows.Close()

	items := make([]WatchItem, 0)
	for rows.Next() {
		var item WatchItem
		if err := rows.Scan(&item.WatchID, &item.WatchUUID, &item.Query, &item.Enabled, &item.FeedCount, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan watch: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watches: %w", err)
	}
	return items, nil
}

func (s *PgStore) subjectSources(ctx context.Context, subjectID int64, page, pageSize int) ([]SourceItem, error) {
	query, args, err := db.Psql.Select(
		"src.source_id",
		"src.url",
		"src.title",
		"src.published",
		"src.excerpt",
		"src.author",
		"src.section",
		"src.language",
		"src.sentiment",
		"src.word_count",
		"p.slug",
		"EXISTS (SELECT 1 FROM track.article_texts at WHERE at.source_id = src.source_id)",
	).
		From("track.subject_sources ss").
		Join("track.sources src ON src.source_id = ss.source_id").
		LeftJoin("track.publications p ON p.publication_id = src.publication_id").
		Where(sq.Eq{"ss.subject_id": subjectID}).
		OrderBy("src.published DESC", "src.source_id DESC").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	items := make([]SourceItem, 0)
	for rows.Next() {
		var item SourceItem
		if err := rows.Scan(
			&item.SourceID,
			&item.URL,
			&item.Title,
			&item.Published,
			&item.Excerpt,
			&item.Author,
			&item.Section,
			&item.Language,
			&item.Sentiment,
			&item.WordCount,
			&item.PublicationSlug,
			&item.Hydrated,
		); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return items, nil
}

func (s *PgStore) ListIngestionEvents(ctx context.Context, limit int, status string) ([]IngestionEventItem, error) {
	builder := db.Psql.Select(
		"ingestion_event_id",
		"ingestion_event_uuid::text",
		"source_url",
		"status::text",
		"source_id",
		"detail",
		"occurred_at",
	).
		From("track.ingestion_events").
		OrderBy("occurred_at DESC", "ingestion_event_id DESC").
		Limit(uint64(limit))
	if status != "" {
		builder = builder.Where("status = ?::track.ingestion_status", status)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build events query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ingestion events: %w", err)
	}
	defer rows.Close()

	items := make([]IngestionEventItem, 0)
	for rows.Next() {
		var (
			item   IngestionEventItem
			detail []byte
		)
		if err := rows.Scan(&item.EventID, &item.EventUUID, &item.SourceURL, &item.Status, &item.SourceID, &detail, &item.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan ingestion event: %w", err)
		}
		item.Detail = json.RawMessage(detail)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingestion events: %w", err)
	}
	return items, nil
}

func (s *PgStore) ListIngestRuns(ctx context.Context, limit int) ([]IngestRunItem, error) {
	const q = `
		SELECT
			run_uuid::text,
			trigger,
			status::text,
			started_at,
			finished_at,
			adapters_total,
			adapters_failed,
			items_fetched,
			items_kept,
			items_inserted,
			links_created,
			hydrated,
			error_message
		FROM track.ingest_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingest runs: %w", err)
	}
	defer rows.Close()

	items := make([]IngestRunItem, 0)
	for rows.Next() {
		var item IngestRunItem
		if err := rows.Scan(
			&item.RunUUID,
			&item.Trigger,
			&item.Status,
			&item.StartedAt,
			&item.FinishedAt,
			&item.AdaptersTotal,
			&item.AdaptersFailed,
			&item.ItemsFetched,
			&item.ItemsKept,
			&item.ItemsInserted,
			&item.LinksCreated,
			&item.Hydrated,
			&item.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest runs: %w", err)
	}
	return items, nil
}
