package adapter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/globaltime"
	"github.com/KasiaMirowska/shift-track/internal/language"
	"github.com/KasiaMirowska/shift-track/internal/reader"
)

// RSSFeed pulls an RSS or Atom document and maps its items.
type RSSFeed struct {
	id              string
	url             string
	section         string
	language        string
	publicationSlug string
	deps            Deps
}

type RSSConfig struct {
	ID              string
	URL             string
	Section         string
	Language        string
	PublicationSlug string
}

func NewRSSFeed(cfg RSSConfig, deps Deps) *RSSFeed {
	return &RSSFeed{
		id:              cfg.ID,
		url:             strings.TrimSpace(cfg.URL),
		section:         article.NormalizeSection(cfg.Section),
		language:        cfg.Language,
		publicationSlug: strings.TrimSpace(cfg.PublicationSlug),
		deps:            deps,
	}
}

func (f *RSSFeed) ID() string { return f.id }

func (f *RSSFeed) FetchBatch(ctx context.Context) ([]article.Normalized, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.deps.timeout())
	defer cancel()

	body, err := f.deps.get(fetchCtx, f.url, "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.url, err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}

	return mapFeedItems(feed, f.section, f.language, f.publicationSlug, globaltime.UTC()), nil
}

func mapFeedItems(feed *gofeed.Feed, section, lang, publicationSlug string, fetchedAt time.Time) []article.Normalized {
	if feed == nil {
		return nil
	}
	feedLanguage := language.FirstCode(lang, feed.Language)

	out := make([]article.Normalized, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		title := strings.TrimSpace(item.Title)
		if link == "" && title == "" {
			continue
		}

		if title == "" {
			title = "Untitled"
		}

		html := firstNonBlank(item.Content, item.Description)
		summary := reader.HTMLToText(firstNonBlank(item.Description, item.Content))

		out = append(out, article.Normalized{
			ExternalID:      firstNonBlank(item.GUID, link),
			URL:             link,
			Title:           title,
			Summary:         summary,
			HTML:            html,
			Author:          itemAuthor(item),
			Published:       itemPublished(item, fetchedAt),
			Section:         section,
			Language:        feedLanguage,
			PublicationSlug: publicationSlug,
		})
	}
	return out
}

func itemPublished(item *gofeed.Item, fallback time.Time) time.Time {
	if item.PublishedParsed != nil && !item.PublishedParsed.IsZero() {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil && !item.UpdatedParsed.IsZero() {
		return item.UpdatedParsed.UTC()
	}
	return fallback
}

func itemAuthor(item *gofeed.Item) string {
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		if creator := strings.TrimSpace(item.DublinCoreExt.Creator[0]); creator != "" {
			return creator
		}
	}
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	for _, person := range item.Authors {
		if person != nil && strings.TrimSpace(person.Name) != "" {
			return strings.TrimSpace(person.Name)
		}
	}
	return ""
}
