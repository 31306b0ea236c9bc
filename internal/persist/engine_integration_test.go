package persist

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/config"
	"github.com/KasiaMirowska/shift-track/internal/db"
)

const testDatabaseEnv = "SHIFTTRACK_TEST_DATABASE_URL"

func openTestPool(t *testing.T) *db.Pool {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv(testDatabaseEnv))
	if dsn == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, &config.Config{
		Environment: "test",
		LogLevel:    "silent",
		DatabaseURL: dsn,
		DBMinConns:  1,
		DBMaxConns:  4,
	})
	if err != nil {
		t.Fatalf("open test pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func createSubjectWithWatch(t *testing.T, pool *db.Pool, name, query string) int64 {
	t.Helper()
	ctx := context.Background()

	var subjectID int64
	slug := fmt.Sprintf("%s-%d", strings.ToLower(name), time.Now().UnixNano())
	if err := pool.QueryRow(ctx, `
		INSERT INTO track.subjects (slug, name, type)
		VALUES ($1, $2, 'TOPIC')
		RETURNING subject_id
	`, slug, slug).Scan(&subjectID); err != nil {
		t.Fatalf("insert subject: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO track.watches (subject_id, query, enabled)
		VALUES ($1, $2, true)
	`, subjectID, query); err != nil {
		t.Fatalf("insert watch: %v", err)
	}
	return subjectID
}

func TestPersistIsIdempotent(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	token := fmt.Sprintf("zq%d", time.Now().UnixNano())
	subjectID := createSubjectWithWatch(t, pool, "Persist", token)
	url := fmt.Sprintf("https://www.npr.org/2026/03/01/%s/?utm_source=feed", token)

	engine := NewEngine(pool, zerolog.Nop(), 25)
	items := []article.Normalized{
		{URL: url, Title: "Story about " + token, Summary: "summary", Section: "news"},
		{URL: "https://www.npr.org/unrelated-" + token + "-x", Title: "Nothing to see"},
	}

	m, err := engine.LoadMatcher(ctx)
	if err != nil {
		t.Fatalf("LoadMatcher() error: %v", err)
	}

	first, err := engine.Persist(ctx, "test-adapter", m, items)
	if err != nil {
		t.Fatalf("first Persist() error: %v", err)
	}
	if first.Fetched != 2 || first.Kept != 1 || first.Inserted != 1 || first.Linked != 1 {
		t.Fatalf("first result = %+v", first)
	}
	if len(first.HydrateTargets) != 1 {
		t.Fatalf("first hydrate targets = %+v", first.HydrateTargets)
	}

	second, err := engine.Persist(ctx, "test-adapter", m, items)
	if err != nil {
		t.Fatalf("second Persist() error: %v", err)
	}
	if second.Inserted != 0 || second.NewLinks != 0 {
		t.Fatalf("second result = %+v", second)
	}

	normalized := fmt.Sprintf("https://www.npr.org/2026/03/01/%s", token)

	var sources, links int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM track.sources WHERE url = $1`, normalized).Scan(&sources); err != nil {
		t.Fatalf("count sources: %v", err)
	}
	if err := pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM track.subject_sources ss
		JOIN track.sources s ON s.source_id = ss.source_id
		WHERE s.url = $1 AND ss.subject_id = $2
	`, normalized, subjectID).Scan(&links); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if sources != 1 || links != 1 {
		t.Fatalf("sources = %d links = %d, want 1 and 1", sources, links)
	}

	rows, err := pool.Query(ctx, `
		SELECT status::text
		FROM track.ingestion_events
		WHERE source_url = $1
		ORDER BY ingestion_event_id
	`, normalized)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()

	var statuses []string
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			t.Fatalf("scan event: %v", err)
		}
		statuses = append(statuses, status)
	}
	if strings.Join(statuses, ",") != StatusInserted+","+StatusMatched {
		t.Fatalf("event statuses = %v", statuses)
	}

	var publicationSlug string
	if err := pool.QueryRow(ctx, `
		SELECT p.slug
		FROM track.sources s
		JOIN track.publications p ON p.publication_id = s.publication_id
		WHERE s.url = $1
	`, normalized).Scan(&publicationSlug); err != nil {
		t.Fatalf("load publication: %v", err)
	}
	if publicationSlug != "npr" {
		t.Fatalf("publication slug = %q, want npr", publicationSlug)
	}
}

func TestPersistWithNoMatchesWritesNothing(t *testing.T) {
	pool := openTestPool(t)
	engine := NewEngine(pool, zerolog.Nop(), 25)

	result, err := engine.PersistCandidates(context.Background(), "empty", nil)
	if err != nil {
		t.Fatalf("PersistCandidates() error: %v", err)
	}
	if result.Kept != 0 || result.Inserted != 0 || len(result.HydrateTargets) != 0 {
		t.Fatalf("result = %+v", result)
	}
}
