package publication

import "testing"

func TestDeriveFromURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Hint
		ok   bool
	}{
		{in: "https://www.bbc.co.uk/news/world-1", want: Hint{Slug: "bbc", Name: "BBC News", Domain: "bbc.co.uk"}, ok: true},
		{in: "https://feeds.bbci.co.uk/news/rss.xml", want: Hint{Slug: "bbci", Name: "Bbci", Domain: "bbci.co.uk"}, ok: true},
		{in: "https://www.npr.org/2024/01/01/x", want: Hint{Slug: "npr", Name: "NPR", Domain: "npr.org"}, ok: true},
		{in: "https://www.theguardian.com/world/2024/x", want: Hint{Slug: "guardian", Name: "The Guardian", Domain: "theguardian.com"}, ok: true},
		{in: "https://news.example-times.com/a", want: Hint{Slug: "example-times", Name: "Example Times", Domain: "example-times.com"}, ok: true},
		{in: "not a url", ok: false},
	}

	for _, tc := range cases {
		got, ok := DeriveFromURL(tc.in)
		if ok != tc.ok {
			t.Fatalf("DeriveFromURL(%q) ok = %t, want %t", tc.in, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("DeriveFromURL(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestResolvePrefersAdapterSlug(t *testing.T) {
	t.Parallel()

	got, ok := Resolve("guardian", "https://example.com/x")
	if !ok || got.Slug != "guardian" || got.Domain != "theguardian.com" {
		t.Fatalf("Resolve() = %+v, %t", got, ok)
	}

	got, ok = Resolve(" ", "https://www.npr.org/x")
	if !ok || got.Slug != "npr" {
		t.Fatalf("Resolve() fallback = %+v, %t", got, ok)
	}
}

func TestDedupeFillsDefaults(t *testing.T) {
	t.Parallel()

	got := Dedupe([]Hint{
		{Slug: "Wired"},
		{Slug: "wired", Name: "Other"},
		{Slug: "  "},
		{Slug: "bbc", Name: "BBC News", Domain: "bbc.co.uk"},
	})
	if len(got) != 2 {
		t.Fatalf("Dedupe() len = %d, want 2: %+v", len(got), got)
	}
	if got[0] != (Hint{Slug: "wired", Name: "Wired", Domain: "wired.com"}) {
		t.Fatalf("Dedupe()[0] = %+v", got[0])
	}
}
