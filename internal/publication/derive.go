// Package publication maps article sources onto stored publications.
package publication

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"github.com/KasiaMirowska/shift-track/internal/urlnorm"
)

// Hint identifies a publication by slug, with optional display name and domain.
type Hint struct {
	Slug   string
	Name   string
	Domain string
}

var knownDomains = map[string]Hint{
	"bbc.co.uk":       {Slug: "bbc", Name: "BBC News", Domain: "bbc.co.uk"},
	"bbc.com":         {Slug: "bbc", Name: "BBC News", Domain: "bbc.co.uk"},
	"npr.org":         {Slug: "npr", Name: "NPR", Domain: "npr.org"},
	"theguardian.com": {Slug: "guardian", Name: "The Guardian", Domain: "theguardian.com"},
	"guardian.co.uk":  {Slug: "guardian", Name: "The Guardian", Domain: "theguardian.com"},
	"reuters.com":     {Slug: "reuters", Name: "Reuters", Domain: "reuters.com"},
}

var knownSlugs = func() map[string]Hint {
	out := make(map[string]Hint, len(knownDomains))
	for _, h := range knownDomains {
		out[h.Slug] = h
	}
	return out
}()

// FromSlug builds a hint for an adapter-supplied slug, filling known names and domains.
func FromSlug(slug string) (Hint, bool) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Hint{}, false
	}
	if known, ok := knownSlugs[slug]; ok {
		return known, true
	}
	return Hint{Slug: slug}, true
}

// DeriveFromURL guesses the publication of an article URL. Known domains map
// to curated entries; anything else uses the registrable domain's first label.
func DeriveFromURL(rawURL string) (Hint, bool) {
	host := urlnorm.Host(rawURL)
	if host == "" {
		return Hint{}, false
	}

	for domain, hint := range knownDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return hint, true
		}
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		labels := strings.Split(host, ".")
		if len(labels) < 2 {
			return Hint{}, false
		}
		registrable = strings.Join(labels[len(labels)-2:], ".")
	}

	slug, _, _ := strings.Cut(registrable, ".")
	if slug == "" {
		return Hint{}, false
	}
	return Hint{Slug: slug, Name: titleCase(slug), Domain: registrable}, true
}

// Resolve picks the hint for one article: the adapter slug wins over the URL heuristic.
func Resolve(publicationSlug, articleURL string) (Hint, bool) {
	if hint, ok := FromSlug(publicationSlug); ok {
		return hint, true
	}
	return DeriveFromURL(articleURL)
}

func (h Hint) withDefaults() Hint {
	h.Slug = strings.ToLower(strings.TrimSpace(h.Slug))
	if strings.TrimSpace(h.Name) == "" {
		h.Name = titleCase(h.Slug)
	}
	if strings.TrimSpace(h.Domain) == "" {
		h.Domain = h.Slug + ".com"
	}
	h.Domain = strings.ToLower(strings.TrimSpace(h.Domain))
	return h
}

func titleCase(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
