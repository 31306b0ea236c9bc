package persist

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/publication"
	"github.com/KasiaMirowska/shift-track/internal/urlnorm"
)

const (
	StatusInserted = "inserted"
	StatusMatched  = "matched"
)

// prepared is a candidate keyed by its normalized URL.
type prepared struct {
	URL        string
	Article    article.Normalized
	SubjectIDs []int64
	Hint       publication.Hint
	HasHint    bool
}

// prepareCandidates normalizes URLs and folds candidates sharing a URL into
// one, unioning their subject ids. The first occurrence keeps its metadata.
func prepareCandidates(candidates []article.Candidate, fetchedAt time.Time) []prepared {
	out := make([]prepared, 0, len(candidates))
	index := make(map[string]int, len(candidates))

	for _, c := range candidates {
		normalized := strings.TrimSpace(urlnorm.Normalize(c.Article.URL))
		if normalized == "" || len(c.SubjectIDs) == 0 {
			continue
		}

		if i, ok := index[normalized]; ok {
			out[i].SubjectIDs = mergeIDs(out[i].SubjectIDs, c.SubjectIDs)
			continue
		}

		a := c.Article
		a.URL = normalized
		a.Title = strings.TrimSpace(a.Title)
		if a.Title == "" {
			a.Title = db.UntitledPlaceholder
		}
		if a.Published.IsZero() {
			a.Published = fetchedAt
		}
		a.Section = article.NormalizeSection(a.Section)

		hint, ok := publication.Resolve(a.PublicationSlug, normalized)
		index[normalized] = len(out)
		out = append(out, prepared{
			URL:        normalized,
			Article:    a,
			SubjectIDs: mergeIDs(nil, c.SubjectIDs),
			Hint:       hint,
			HasHint:    ok,
		})
	}
	return out
}

func preparedURLs(items []prepared) []string {
	urls := make([]string, 0, len(items))
	for _, p := range items {
		urls = append(urls, p.URL)
	}
	return urls
}

func preparedHints(items []prepared) []publication.Hint {
	hints := make([]publication.Hint, 0, len(items))
	for _, p := range items {
		if p.HasHint {
			hints = append(hints, p.Hint)
		}
	}
	return hints
}

type pair struct {
	SubjectID int64
	SourceID  int64
}

// buildPairs expands candidates into distinct (subject, source) pairs.
// Candidates whose URL has no resolved source id are skipped.
func buildPairs(items []prepared, sourceIDs map[string]int64) []pair {
	seen := make(map[pair]struct{})
	var pairs []pair
	for _, p := range items {
		sourceID, ok := sourceIDs[p.URL]
		if !ok {
			continue
		}
		for _, subjectID := range p.SubjectIDs {
			key := pair{SubjectID: subjectID, SourceID: sourceID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pairs = append(pairs, key)
		}
	}
	return pairs
}

// splitPairs keeps pairs whose subject and source both exist and returns the rest as dropped.
func splitPairs(pairs []pair, subjects, sources map[int64]struct{}) (kept, dropped []pair) {
	for _, p := range pairs {
		_, subjectOK := subjects[p.SubjectID]
		_, sourceOK := sources[p.SourceID]
		if subjectOK && sourceOK {
			kept = append(kept, p)
			continue
		}
		dropped = append(dropped, p)
	}
	return kept, dropped
}

func pairColumns(pairs []pair) (subjectIDs, sourceIDs []int64) {
	subjectIDs = make([]int64, 0, len(pairs))
	sourceIDs = make([]int64, 0, len(pairs))
	for _, p := range pairs {
		subjectIDs = append(subjectIDs, p.SubjectID)
		sourceIDs = append(sourceIDs, p.SourceID)
	}
	return subjectIDs, sourceIDs
}

// EventDetail is the structured audit payload stored with each ingestion event.
type EventDetail struct {
	AdapterID         string     `json:"adapter_id"`
	MatchedSubjectIDs []int64    `json:"matched_subject_ids"`
	Title             string     `json:"title"`
	PublicationSlug   string     `json:"publication_slug,omitempty"`
	Section           string     `json:"section,omitempty"`
	Language          string     `json:"language,omitempty"`
	Author            string     `json:"author,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
}

type eventRow struct {
	SourceURL string
	Status    string
	SourceID  *int64
	Detail    json.RawMessage
}

// buildEvents creates one event per candidate. A URL counts as inserted only
// when it was absent before the write and this transaction's insert returned it.
func buildEvents(adapterID string, items []prepared, existedBefore, insertedNow map[string]struct{}, sourceIDs map[string]int64) ([]eventRow, error) {
	events := make([]eventRow, 0, len(items))
	for _, p := range items {
		status := StatusMatched
		_, existed := existedBefore[p.URL]
		_, inserted := insertedNow[p.URL]
		if !existed && inserted {
			status = StatusInserted
		}

		detail := EventDetail{
			AdapterID:         adapterID,
			MatchedSubjectIDs: p.SubjectIDs,
			Title:             p.Article.Title,
			Section:           p.Article.Section,
			Language:          p.Article.Language,
			Author:            p.Article.Author,
		}
		if p.HasHint {
			detail.PublicationSlug = p.Hint.Slug
		}
		if !p.Article.Published.IsZero() {
			published := p.Article.Published.UTC()
			detail.PublishedAt = &published
		}
		raw, err := json.Marshal(detail)
		if err != nil {
			return nil, err
		}

		row := eventRow{SourceURL: p.URL, Status: status, Detail: raw}
		if id, ok := sourceIDs[p.URL]; ok {
			id := id
			row.SourceID = &id
		}
		events = append(events, row)
	}
	return events, nil
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

func mergeIDs(dst, src []int64) []int64 {
	seen := make(map[int64]struct{}, len(dst)+len(src))
	merged := make([]int64, 0, len(dst)+len(src))
	for _, list := range [][]int64{dst, src} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	return merged
}

func setKeys[K comparable](m map[K]struct{}) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func nullIfBlank(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
