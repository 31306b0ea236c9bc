package adapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/db"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Catalog is the file form of the feed catalog.
type Catalog struct {
	Publications []CatalogPublication `yaml:"publications"`
	Feeds        []CatalogFeed        `yaml:"feeds"`
}

type CatalogPublication struct {
	Slug   string `yaml:"slug"`
	Name   string `yaml:"name"`
	Domain string `yaml:"domain"`
}

type CatalogFeed struct {
	Key          string         `yaml:"key"`
	Publication  string         `yaml:"publication"`
	Section      string         `yaml:"section"`
	Kind         string         `yaml:"kind"`
	AdapterKey   string         `yaml:"adapter_key"`
	Title        string         `yaml:"title"`
	URL          string         `yaml:"url"`
	QualityScore *float64       `yaml:"quality_score"`
	Language     string         `yaml:"language"`
	Params       map[string]any `yaml:"params"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(embeddedCatalog)
}

// LoadCatalogFile reads a catalog from disk.
func LoadCatalogFile(path string) (Catalog, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(body)
}

func ParseCatalog(body []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(body, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	for i := range c.Feeds {
		f := &c.Feeds[i]
		f.Kind = strings.ToLower(strings.TrimSpace(f.Kind))
		f.Section = article.NormalizeSection(f.Section)
		if f.Key == "" {
			f.Key = fmt.Sprintf("%s-%s", f.Publication, f.Section)
		}
		if f.Language == "" {
			f.Language = "en"
		}
		if f.Title == "" {
			f.Title = fmt.Sprintf("%s %s", strings.ToUpper(f.Publication), f.Section)
		}
		if strings.TrimSpace(f.URL) == "" {
			return Catalog{}, fmt.Errorf("catalog feed %q has no url", f.Key)
		}
	}
	return c, nil
}

// StaticAdapters builds adapters straight from the catalog without touching
// the database. Guardian entries are skipped when no API key is configured.
func (c Catalog) StaticAdapters(deps Deps) []Adapter {
	adapters := make([]Adapter, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		a, err := f.staticAdapter(deps)
		if err != nil {
			deps.Logger.Warn().Err(err).Str("feed_key", f.Key).Msg("skipping static feed")
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters
}

func (f CatalogFeed) staticAdapter(deps Deps) (Adapter, error) {
	switch Kind(f.Kind) {
	case KindRSS, KindAtom:
		return NewRSSFeed(RSSConfig{
			ID:              "rss-" + f.Key,
			URL:             f.URL,
			Section:         f.Section,
			Language:        f.Language,
			PublicationSlug: f.Publication,
		}, deps), nil
	case KindAPI:
		if f.AdapterKey != GuardianAdapterKey {
			return nil, fmt.Errorf("adapter key %q: %w", f.AdapterKey, ErrUnsupportedKind)
		}
		raw, err := f.paramsJSON()
		if err != nil {
			return nil, err
		}
		params, err := DecodeGuardianParams(raw)
		if err != nil {
			return nil, err
		}
		base, path := splitGuardianURL(f.URL)
		if deps.Guardian.BaseURL != "" && deps.Guardian.BaseURL != DefaultGuardianBaseURL {
			base = deps.Guardian.BaseURL
		}
		return NewGuardianAPI(GuardianConfigForFeed{
			ID:          fmt.Sprintf("guardian-%s-static", f.Section),
			BaseURL:     base,
			SectionPath: path,
			Section:     f.Section,
			Params:      params,
		}, deps)
	case KindScraper:
		raw, err := f.paramsJSON()
		if err != nil {
			return nil, err
		}
		params, err := DecodeScraperParams(raw)
		if err != nil {
			return nil, err
		}
		return NewScraper(ScraperConfig{
			ID:              "scraper-" + f.Key,
			URL:             f.URL,
			Section:         f.Section,
			Language:        f.Language,
			PublicationSlug: f.Publication,
			Params:          params,
		}, deps)
	default:
		return nil, fmt.Errorf("kind %q: %w", f.Kind, ErrUnsupportedKind)
	}
}

func (f CatalogFeed) paramsJSON() (json.RawMessage, error) {
	if len(f.Params) == 0 {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(f.Params)
	if err != nil {
		return nil, fmt.Errorf("encode params for %s: %w", f.Key, err)
	}
	return raw, nil
}

// SeedResult counts rows written by Seed.
type SeedResult struct {
	Publications int
	Feeds        int
}

// Seed upserts the catalog's publications and feeds inside the caller's transaction.
func (c Catalog) Seed(ctx context.Context, q db.Querier) (SeedResult, error) {
	var result SeedResult
	publicationIDs := make(map[string]int64, len(c.Publications))
	for _, p := range c.Publications {
		id, err := db.UpsertPublication(ctx, q, p.Slug, p.Name, p.Domain)
		if err != nil {
			return result, err
		}
		publicationIDs[p.Slug] = id
		result.Publications++
	}

	for _, f := range c.Feeds {
		raw, err := f.paramsJSON()
		if err != nil {
			return result, err
		}
		var pubID *int64
		if id, ok := publicationIDs[f.Publication]; ok {
			pubID = &id
		}
		if _, err := db.UpsertFeed(ctx, q, db.FeedSeed{
			URL:           f.URL,
			Kind:          f.Kind,
			AdapterKey:    f.AdapterKey,
			Title:         f.Title,
			Section:       f.Section,
			PublicationID: pubID,
			QualityScore:  f.QualityScore,
			Params:        raw,
			Language:      f.Language,
		}); err != nil {
			return result, err
		}
		result.Feeds++
	}
	return result, nil
}
