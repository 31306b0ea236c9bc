package db

import (
	"encoding/json"
	"time"
)

// Subject maps track.subjects.
type Subject struct {
	SubjectID   int64     `gorm:"column:subject_id;primaryKey;autoIncrement"`
	SubjectUUID string    `gorm:"column:subject_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Slug        string    `gorm:"column:slug;type:text;not null;unique"`
	Name        string    `gorm:"column:name;type:text;not null"`
	Type        string    `gorm:"column:type;type:track.subject_type;not null;default:TOPIC"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Subject) TableName() string { return "track.subjects" }

// Watch maps track.watches.
type Watch struct {
	WatchID   int64     `gorm:"column:watch_id;primaryKey;autoIncrement"`
	WatchUUID string    `gorm:"column:watch_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SubjectID int64     `gorm:"column:subject_id;type:bigint;not null;index"`
	Query     string    `gorm:"column:query;type:text;not null"`
	Enabled   bool      `gorm:"column:enabled;type:boolean;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Watch) TableName() string { return "track.watches" }

// Publication maps track.publications.
type Publication struct {
	PublicationID int64     `gorm:"column:publication_id;primaryKey;autoIncrement"`
	Slug          string    `gorm:"column:slug;type:text;not null;unique"`
	Name          string    `gorm:"column:name;type:text;not null"`
	Domain        string    `gorm:"column:domain;type:text;not null;unique"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Publication) TableName() string { return "track.publications" }

// Feed maps track.feeds.
type Feed struct {
	FeedID        int64           `gorm:"column:feed_id;primaryKey;autoIncrement"`
	FeedUUID      string          `gorm:"column:feed_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	URL           string          `gorm:"column:url;type:text;not null;unique"`
	Kind          string          `gorm:"column:kind;type:track.feed_kind;not null;default:rss"`
	AdapterKey    *string         `gorm:"column:adapter_key;type:text"`
	Title         *string         `gorm:"column:title;type:text"`
	Section       string          `gorm:"column:section;type:text;not null;default:news"`
	PublicationID *int64          `gorm:"column:publication_id;type:bigint"`
	QualityScore  *float64        `gorm:"column:quality_score;type:real"`
	Params        json.RawMessage `gorm:"column:params;type:jsonb"`
	Language      *string         `gorm:"column:language;type:text"`
	Region        *string         `gorm:"column:region;type:text"`
	Enabled       bool            `gorm:"column:enabled;type:boolean;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Feed) TableName() string { return "track.feeds" }

// WatchFeed maps track.watch_feeds.
type WatchFeed struct {
	WatchID   int64     `gorm:"column:watch_id;type:bigint;primaryKey"`
	FeedID    int64     `gorm:"column:feed_id;type:bigint;primaryKey"`
	Rank      int       `gorm:"column:rank;type:integer;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (WatchFeed) TableName() string { return "track.watch_feeds" }

// Source maps track.sources.
type Source struct {
	SourceID      int64     `gorm:"column:source_id;primaryKey;autoIncrement"`
	SourceUUID    string    `gorm:"column:source_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	URL           string    `gorm:"column:url;type:text;not null;unique"`
	Title         string    `gorm:"column:title;type:text;not null"`
	PublicationID *int64    `gorm:"column:publication_id;type:bigint;index"`
	Published     time.Time `gorm:"column:published;type:timestamptz;not null"`
	Excerpt       *string   `gorm:"column:excerpt;type:text"`
	Summary       *string   `gorm:"column:summary;type:text"`
	Sentiment     *float64  `gorm:"column:sentiment;type:real"`
	WordCount     *int      `gorm:"column:word_count;type:integer"`
	TextHash      *string   `gorm:"column:text_hash;type:text;index"`
	Author        *string   `gorm:"column:author;type:text"`
	Section       *string   `gorm:"column:section;type:text"`
	Language      *string   `gorm:"column:language;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "track.sources" }

// ArticleText maps track.article_texts.
type ArticleText struct {
	SourceID    int64     `gorm:"column:source_id;type:bigint;primaryKey"`
	Text        string    `gorm:"column:text;type:text;not null"`
	HTML        *string   `gorm:"column:html;type:text"`
	ExtractedAt time.Time `gorm:"column:extracted_at;type:timestamptz;not null;default:now()"`
}

func (ArticleText) TableName() string { return "track.article_texts" }

// SubjectSource maps track.subject_sources.
type SubjectSource struct {
	SubjectID int64     `gorm:"column:subject_id;type:bigint;primaryKey"`
	SourceID  int64     `gorm:"column:source_id;type:bigint;primaryKey;index"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (SubjectSource) TableName() string { return "track.subject_sources" }

// IngestionEvent maps track.ingestion_events.
type IngestionEvent struct {
	IngestionEventID   int64           `gorm:"column:ingestion_event_id;primaryKey;autoIncrement"`
	IngestionEventUUID string          `gorm:"column:ingestion_event_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SourceURL          string          `gorm:"column:source_url;type:text;not null;index"`
	Status             string          `gorm:"column:status;type:track.ingestion_status;not null"`
	Detail             json.RawMessage `gorm:"column:detail;type:jsonb;not null;default:'{}'"`
	SourceID           *int64          `gorm:"column:source_id;type:bigint;index"`
	OccurredAt         time.Time       `gorm:"column:occurred_at;type:timestamptz;not null;default:now()"`
}

func (IngestionEvent) TableName() string { return "track.ingestion_events" }

// IngestRun maps track.ingest_runs.
type IngestRun struct {
	RunID          int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID        string     `gorm:"column:run_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Trigger        string     `gorm:"column:trigger;type:text;not null"`
	Status         string     `gorm:"column:status;type:track.ingest_run_status;not null;default:running"`
	StartedAt      time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt     *time.Time `gorm:"column:finished_at;type:timestamptz"`
	AdaptersTotal  int        `gorm:"column:adapters_total;type:integer;not null;default:0"`
	AdaptersFailed int        `gorm:"column:adapters_failed;type:integer;not null;default:0"`
	ItemsFetched   int        `gorm:"column:items_fetched;type:integer;not null;default:0"`
	ItemsKept      int        `gorm:"column:items_kept;type:integer;not null;default:0"`
	ItemsInserted  int        `gorm:"column:items_inserted;type:integer;not null;default:0"`
	LinksCreated   int        `gorm:"column:links_created;type:integer;not null;default:0"`
	Hydrated       int        `gorm:"column:hydrated;type:integer;not null;default:0"`
	HydrateFailed  int        `gorm:"column:hydrate_failed;type:integer;not null;default:0"`
	ErrorMessage   *string    `gorm:"column:error_message;type:text"`
}

func (IngestRun) TableName() string { return "track.ingest_runs" }

func autoMigrateModels() []any {
	return []any{
		&Subject{},
		&Watch{},
		&Publication{},
		&Feed{},
		&WatchFeed{},
		&Source{},
		&ArticleText{},
		&SubjectSource{},
		&IngestionEvent{},
		&IngestRun{},
	}
}
