package adapter

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/db"
)

// FromFeed builds the adapter variant for one catalog row.
func FromFeed(feed db.FeedRow, deps Deps) (Adapter, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(feed.Kind))) {
	case KindRSS, KindAtom:
		return NewRSSFeed(RSSConfig{
			ID:              fmt.Sprintf("rss-%d", feed.FeedID),
			URL:             feed.URL,
			Section:         feed.Section,
			Language:        feed.Language,
			PublicationSlug: feed.PublicationSlug,
		}, deps), nil

	case KindAPI:
		if strings.TrimSpace(feed.AdapterKey) != GuardianAdapterKey {
			return nil, fmt.Errorf("feed %d adapter key %q: %w", feed.FeedID, feed.AdapterKey, ErrUnsupportedKind)
		}
		params, err := DecodeGuardianParams(feed.Params)
		if err != nil {
			return nil, fmt.Errorf("feed %d params: %w", feed.FeedID, err)
		}
		section := article.NormalizeSection(feed.Section)
		base, path := splitGuardianURL(feed.URL)
		return NewGuardianAPI(GuardianConfigForFeed{
			ID:          fmt.Sprintf("guardian-%s-%d", section, feed.FeedID),
			BaseURL:     base,
			SectionPath: path,
			Section:     section,
			Params:      params,
		}, deps)

	case KindScraper:
		params, err := DecodeScraperParams(feed.Params)
		if err != nil {
			return nil, fmt.Errorf("feed %d params: %w", feed.FeedID, err)
		}
		return NewScraper(ScraperConfig{
			ID:              fmt.Sprintf("scraper-%d", feed.FeedID),
			URL:             feed.URL,
			Section:         feed.Section,
			Language:        feed.Language,
			PublicationSlug: feed.PublicationSlug,
			Params:          params,
		}, deps)

	default:
		return nil, fmt.Errorf("feed %d kind %q: %w", feed.FeedID, feed.Kind, ErrUnsupportedKind)
	}
}

// FromFeeds builds adapters for every distinct feed row. Rows that fail to
// build are logged and skipped.
func FromFeeds(feeds []db.FeedRow, deps Deps) []Adapter {
	seen := make(map[int64]struct{}, len(feeds))
	adapters := make([]Adapter, 0, len(feeds))
	for _, feed := range feeds {
		if _, ok := seen[feed.FeedID]; ok {
			continue
		}
		seen[feed.FeedID] = struct{}{}

		a, err := FromFeed(feed, deps)
		if err != nil {
			deps.Logger.Warn().
				Err(err).
				Int64("feed_id", feed.FeedID).
				Str("url", feed.URL).
				Msg("skipping feed that cannot be adapted")
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters
}

// splitGuardianURL turns https://content.guardianapis.com/politics into its
// base and section path. Feed rows without a path get the section default.
func splitGuardianURL(raw string) (string, string) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", ""
	}
	base := parsed.Scheme + "://" + parsed.Host
	return base, strings.Trim(parsed.Path, "/")
}
