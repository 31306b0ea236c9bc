// Package feedresolve picks catalog feeds for a new or edited watch.
package feedresolve

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/article"
)

const (
	DefaultLimit   = 12
	maxHaystackLen = 128
)

// Candidate is a feed id with its catalog quality score.
type Candidate struct {
	FeedID int64
	Score  *float64
}

// Catalog is the slice of the feed store the resolver reads.
type Catalog interface {
	SectionCandidates(ctx context.Context, sections []string, limit int) ([]Candidate, error)
	TitleCandidates(ctx context.Context, haystack string, limit int) ([]Candidate, error)
	DefaultFeedID(ctx context.Context) (int64, error)
}

var sectionTriggers = []struct {
	section string
	pattern *regexp.Regexp
}{
	{article.SectionPolitics, regexp.MustCompile(`politic|election|president|senate|congress|campaign`)},
	{article.SectionScience, regexp.MustCompile(`science|research|study|nasa|physics|biology|ai|ml`)},
	{article.SectionCulture, regexp.MustCompile(`culture|arts|film|music|book|tv`)},
}

type Resolver struct {
	catalog Catalog
	logger  zerolog.Logger
}

func New(catalog Catalog, logger zerolog.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// Resolve returns feed ids for a watch, best first. It never returns an
// empty list unless the catalog fails.
func (r *Resolver) Resolve(ctx context.Context, subjectName, query string, limit int) ([]int64, error) {
	if r == nil || r.catalog == nil {
		return nil, fmt.Errorf("feed resolver is not initialized")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	haystack := Haystack(subjectName, query)
	sections := DeriveSections(haystack)

	bySection, err := r.catalog.SectionCandidates(ctx, sections, limit)
	if err != nil {
		return nil, fmt.Errorf("select section feeds: %w", err)
	}
	byTitle, err := r.catalog.TitleCandidates(ctx, haystack, limit)
	if err != nil {
		return nil, fmt.Errorf("select title feeds: %w", err)
	}

	ids := merge(append(bySection, byTitle...), limit)
	if len(ids) > 0 {
		return ids, nil
	}

	fallback, err := r.catalog.DefaultFeedID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve default feed: %w", err)
	}
	r.logger.Info().
		Str("haystack", haystack).
		Strs("sections", sections).
		Int64("feed_id", fallback).
		Msg("no catalog feeds matched; using default feed")
	return []int64{fallback}, nil
}

// Haystack joins subject name and query, capped at 128 characters.
func Haystack(subjectName, query string) string {
	hay := strings.TrimSpace(subjectName + " " + query)
	runes := []rune(hay)
	if len(runes) > maxHaystackLen {
		hay = string(runes[:maxHaystackLen])
	}
	return hay
}

// DeriveSections maps keyword triggers to sections. news is always present.
func DeriveSections(haystack string) []string {
	lower := strings.ToLower(haystack)
	var out []string
	for _, trigger := range sectionTriggers {
		if trigger.pattern.MatchString(lower) {
			out = append(out, trigger.section)
		}
	}
	return append(out, article.SectionNews)
}

// merge keeps the best score per feed, sorts descending and truncates.
// Missing scores count as zero.
func merge(candidates []Candidate, limit int) []int64 {
	best := make(map[int64]float64, len(candidates))
	order := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		score := 0.0
		if c.Score != nil {
			score = *c.Score
		}
		prev, seen := best[c.FeedID]
		if !seen {
			order = append(order, c.FeedID)
			best[c.FeedID] = score
			continue
		}
		if score > prev {
			best[c.FeedID] = score
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return best[order[i]] > best[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}
