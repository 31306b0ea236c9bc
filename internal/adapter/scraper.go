package adapter

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/globaltime"
	"github.com/KasiaMirowska/shift-track/internal/language"
)

const defaultScraperMaxItems = 50

// Scraper reads article links off an HTML listing page.
type Scraper struct {
	id              string
	pageURL         string
	section         string
	language        string
	publicationSlug string
	params          ScraperParams
	deps            Deps
}

type ScraperConfig struct {
	ID              string
	URL             string
	Section         string
	Language        string
	PublicationSlug string
	Params          ScraperParams
}

func NewScraper(cfg ScraperConfig, deps Deps) (*Scraper, error) {
	if strings.TrimSpace(cfg.Params.ItemSelector) == "" {
		return nil, fmt.Errorf("scraper %s requires item_selector", cfg.ID)
	}
	params := cfg.Params
	if params.LinkSelector == "" {
		params.LinkSelector = "a[href]"
	}
	if params.MaxItems <= 0 {
		params.MaxItems = defaultScraperMaxItems
	}

	return &Scraper{
		id:              cfg.ID,
		pageURL:         strings.TrimSpace(cfg.URL),
		section:         article.NormalizeSection(cfg.Section),
		language:        language.NormalizeCode(cfg.Language),
		publicationSlug: strings.TrimSpace(cfg.PublicationSlug),
		params:          params,
		deps:            deps,
	}, nil
}

func (s *Scraper) ID() string { return s.id }

func (s *Scraper) FetchBatch(ctx context.Context) ([]article.Normalized, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.deps.timeout())
	defer cancel()

	body, err := s.deps.get(fetchCtx, s.pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", s.pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", s.pageURL, err)
	}

	base, err := url.Parse(s.pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	fetchedAt := globaltime.UTC()
	seen := map[string]struct{}{}
	var out []article.Normalized

	doc.Find(s.params.ItemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		link := item
		if !item.Is(s.params.LinkSelector) {
			link = item.Find(s.params.LinkSelector).First()
		}
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return true
		}
		target := resolved.String()
		if _, dup := seen[target]; dup {
			return true
		}

		title := strings.TrimSpace(link.Text())
		if s.params.TitleSelector != "" {
			title = firstNonBlank(item.Find(s.params.TitleSelector).First().Text(), title)
		}
		title = strings.Join(strings.Fields(title), " ")
		if title == "" {
			title = "Untitled"
		}

		var summary string
		if s.params.SummarySelector != "" {
			summary = strings.Join(strings.Fields(item.Find(s.params.SummarySelector).First().Text()), " ")
		}

		seen[target] = struct{}{}
		out = append(out, article.Normalized{
			ExternalID:      target,
			URL:             target,
			Title:           title,
			Summary:         summary,
			Published:       fetchedAt,
			Section:         s.section,
			Language:        s.language,
			PublicationSlug: s.publicationSlug,
		})
		return len(out) < s.params.MaxItems
	})

	return out, nil
}
