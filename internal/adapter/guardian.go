package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/KasiaMirowska/shift-track/internal/article"
	"github.com/KasiaMirowska/shift-track/internal/reader"
)

const (
	DefaultGuardianBaseURL  = "https://content.guardianapis.com"
	defaultGuardianPageSize = 25
	guardianPublicationSlug = "guardian"
)

var defaultGuardianFields = []string{"trailText", "body", "headline", "byline", "shortUrl"}

// guardianSectionPaths maps normalized sections to content API paths.
var guardianSectionPaths = map[string]string{
	article.SectionNews:     "world",
	article.SectionPolitics: "politics",
	article.SectionScience:  "science",
	article.SectionCulture:  "culture",
}

// GuardianSectionPath returns the API path for a section, defaulting to world.
func GuardianSectionPath(section string) string {
	if path, ok := guardianSectionPaths[article.NormalizeSection(section)]; ok {
		return path
	}
	return "world"
}

// GuardianAPI pages through one section of the Guardian content API.
type GuardianAPI struct {
	id          string
	baseURL     string
	sectionPath string
	section     string
	params      GuardianParams
	deps        Deps
}

type GuardianConfigForFeed struct {
	ID          string
	BaseURL     string
	SectionPath string
	Section     string
	Params      GuardianParams
}

func NewGuardianAPI(cfg GuardianConfigForFeed, deps Deps) (*GuardianAPI, error) {
	if strings.TrimSpace(deps.Guardian.APIKey) == "" {
		return nil, errors.New("guardian api adapter requires an api key")
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = strings.TrimRight(strings.TrimSpace(deps.Guardian.BaseURL), "/")
	}
	if base == "" {
		base = DefaultGuardianBaseURL
	}

	section := article.NormalizeSection(cfg.Section)
	path := strings.Trim(strings.TrimSpace(cfg.SectionPath), "/")
	if path == "" {
		path = GuardianSectionPath(section)
	}

	params := cfg.Params
	if params.PageSize <= 0 {
		params.PageSize = defaultGuardianPageSize
	}
	if params.MaxPages <= 0 {
		params.MaxPages = deps.Guardian.MaxPages
	}
	if params.MaxPages <= 0 {
		params.MaxPages = 1
	}
	if len(params.ShowFields) == 0 {
		params.ShowFields = defaultGuardianFields
	}

	return &GuardianAPI{
		id:          cfg.ID,
		baseURL:     base,
		sectionPath: path,
		section:     section,
		params:      params,
		deps:        deps,
	}, nil
}

func (g *GuardianAPI) ID() string { return g.id }

type guardianEnvelope struct {
	Response struct {
		Status      string           `json:"status"`
		CurrentPage int              `json:"currentPage"`
		Pages       int              `json:"pages"`
		Results     []guardianResult `json:"results"`
	} `json:"response"`
}

type guardianResult struct {
	ID                 string `json:"id"`
	WebURL             string `json:"webUrl"`
	WebTitle           string `json:"webTitle"`
	WebPublicationDate string `json:"webPublicationDate"`
	Fields             struct {
		TrailText string `json:"trailText"`
		Body      string `json:"body"`
		Headline  string `json:"headline"`
		Byline    string `json:"byline"`
		ShortURL  string `json:"shortUrl"`
	} `json:"fields"`
}

func (g *GuardianAPI) FetchBatch(ctx context.Context) ([]article.Normalized, error) {
	var out []article.Normalized

	for page := 1; page <= g.params.MaxPages; page++ {
		if limiter := g.deps.Guardian.Limiter; limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wait for guardian rate limit: %w", err)
			}
		}

		envelope, err := g.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}

		for _, result := range envelope.Response.Results {
			out = append(out, g.mapResult(result))
		}

		current := envelope.Response.CurrentPage
		total := envelope.Response.Pages
		if current == 0 || total == 0 || current >= total {
			break
		}
	}
	return out, nil
}

func (g *GuardianAPI) fetchPage(ctx context.Context, page int) (guardianEnvelope, error) {
	pageCtx, cancel := context.WithTimeout(ctx, g.deps.timeout())
	defer cancel()

	body, err := g.deps.get(pageCtx, g.pageURL(page), "application/json")
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return guardianEnvelope{}, fmt.Errorf("guardian api %s p%d failed: %d %s", g.section, page, statusErr.StatusCode, statusErr.Body)
		}
		return guardianEnvelope{}, fmt.Errorf("guardian api %s p%d failed: %w", g.section, page, err)
	}

	var envelope guardianEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return guardianEnvelope{}, fmt.Errorf("decode guardian api %s p%d: %w", g.section, page, err)
	}
	return envelope, nil
}

func (g *GuardianAPI) pageURL(page int) string {
	values := url.Values{}
	values.Set("api-key", g.deps.Guardian.APIKey)
	values.Set("show-fields", strings.Join(g.params.ShowFields, ","))
	values.Set("page-size", strconv.Itoa(g.params.PageSize))
	values.Set("page", strconv.Itoa(page))
	if g.params.Query != "" {
		values.Set("q", g.params.Query)
	}
	if g.params.Tag != "" {
		values.Set("tag", g.params.Tag)
	}
	if g.params.FromDate != "" {
		values.Set("from-date", g.params.FromDate)
	}
	if g.params.ToDate != "" {
		values.Set("to-date", g.params.ToDate)
	}
	return g.baseURL + "/" + g.sectionPath + "?" + values.Encode()
}

func (g *GuardianAPI) mapResult(r guardianResult) article.Normalized {
	title := firstNonBlank(r.WebTitle, r.Fields.Headline)
	if title == "" {
		title = "Untitled"
	}

	var published time.Time
	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(r.WebPublicationDate)); err == nil {
		published = ts.UTC()
	}

	return article.Normalized{
		ExternalID:      r.ID,
		URL:             strings.TrimSpace(r.WebURL),
		Title:           title,
		Summary:         reader.HTMLToText(r.Fields.TrailText),
		HTML:            r.Fields.Body,
		Author:          strings.TrimSpace(r.Fields.Byline),
		Published:       published,
		Section:         g.section,
		Language:        "en",
		PublicationSlug: guardianPublicationSlug,
	}
}
