package matcher

import (
	"reflect"
	"testing"

	"github.com/KasiaMirowska/shift-track/internal/article"
)

func TestSquash(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  Climate-Change!! impacts ": "climate change impacts",
		`"OpenAI"`:                    "openai",
		"Café Société":                "cafe societe",
		"ﬁnance Ⅻ":                    "finance xii",
		"...":                         "",
	}
	for in, want := range cases {
		if got := Squash(in); got != want {
			t.Fatalf("Squash(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatchUsesAllTokens(t *testing.T) {
	t.Parallel()

	m := New([]Watch{
		{WatchID: 1, SubjectID: 10, Query: "climate change"},
		{WatchID: 2, SubjectID: 20, Query: "donald trump"},
	})

	got := m.Match(article.Normalized{Title: "UN report on climate change impacts"})
	if !reflect.DeepEqual(got, []int64{10}) {
		t.Fatalf("Match(climate change) = %v, want [10]", got)
	}

	if got := m.Match(article.Normalized{Title: "Climate talks stall"}); len(got) != 0 {
		t.Fatalf("Match(climate talks) = %v, want none", got)
	}

	if got := m.Match(article.Normalized{Title: "Trump speaks at rally"}); len(got) != 0 {
		t.Fatalf("Match(trump only) = %v, want none", got)
	}
}

func TestMatchQuotedQueryAndSummaryFallback(t *testing.T) {
	t.Parallel()

	m := New([]Watch{{WatchID: 1, SubjectID: 7, Query: `"openai"`}})
	got := m.Match(article.Normalized{Title: "New model released", Summary: "OpenAI ships an update"})
	if !reflect.DeepEqual(got, []int64{7}) {
		t.Fatalf("Match() = %v, want [7]", got)
	}
}

func TestMatchDedupesSubjects(t *testing.T) {
	t.Parallel()

	m := New([]Watch{
		{WatchID: 1, SubjectID: 5, Query: "nasa"},
		{WatchID: 2, SubjectID: 5, Query: "mars"},
		{WatchID: 3, SubjectID: 3, Query: "mars rover"},
		{WatchID: 4, SubjectID: 9, Query: "   "},
	})
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}

	got := m.Match(article.Normalized{Title: "NASA Mars rover finds water"})
	if !reflect.DeepEqual(got, []int64{3, 5}) {
		t.Fatalf("Match() = %v, want [3 5]", got)
	}
}

func TestFilterDropsUnmatched(t *testing.T) {
	t.Parallel()

	m := New([]Watch{{SubjectID: 1, Query: "election"}})
	items := []article.Normalized{
		{URL: "https://a.example/1", Title: "Election results"},
		{URL: "https://a.example/2", Title: "Weather update"},
	}

	candidates := m.Filter(items)
	if len(candidates) != 1 || candidates[0].Article.URL != "https://a.example/1" {
		t.Fatalf("Filter() = %+v", candidates)
	}

	if got := New(nil).Filter(items); len(got) != 0 {
		t.Fatalf("Filter() with no watches = %+v", got)
	}
}
