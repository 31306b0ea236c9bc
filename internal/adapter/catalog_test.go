package adapter

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog() error = %v", err)
	}
	if len(c.Publications) != 4 {
		t.Fatalf("publications = %d, want 4", len(c.Publications))
	}

	var guardian, reuters int
	for _, f := range c.Feeds {
		if f.Language != "en" {
			t.Fatalf("feed %s language = %q", f.Key, f.Language)
		}
		if f.Kind == "api" {
			guardian++
			if f.AdapterKey != GuardianAdapterKey {
				t.Fatalf("feed %s adapter key = %q", f.Key, f.AdapterKey)
			}
		}
		if strings.Contains(f.URL, "reuters.com") {
			reuters++
		}
	}
	if guardian != 4 || reuters != 1 {
		t.Fatalf("guardian=%d reuters=%d", guardian, reuters)
	}
}

func TestStaticAdaptersSkipGuardianWithoutKey(t *testing.T) {
	t.Parallel()

	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog() error = %v", err)
	}

	without := c.StaticAdapters(Deps{Logger: zerolog.Nop()})
	with := c.StaticAdapters(Deps{Logger: zerolog.Nop(), Guardian: GuardianConfig{APIKey: "k"}})

	if len(with)-len(without) != 4 {
		t.Fatalf("with key = %d, without = %d", len(with), len(without))
	}
	for _, a := range without {
		if strings.HasPrefix(a.ID(), "guardian-") {
			t.Fatalf("unexpected guardian adapter %s", a.ID())
		}
	}
}

func TestParseCatalogDefaults(t *testing.T) {
	t.Parallel()

	c, err := ParseCatalog([]byte(`
feeds:
  - publication: acme
    section: top
    kind: RSS
    url: https://acme.example/feed
`))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}
	f := c.Feeds[0]
	if f.Key != "acme-news" || f.Kind != "rss" || f.Title != "ACME news" || f.Language != "en" {
		t.Fatalf("feed = %+v", f)
	}

	if _, err := ParseCatalog([]byte("feeds:\n  - kind: rss\n")); err == nil {
		t.Fatalf("expected missing url error")
	}
}
