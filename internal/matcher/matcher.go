// Package matcher decides which subject watches an incoming article satisfies.
package matcher

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/KasiaMirowska/shift-track/internal/article"
)

// Watch is an enabled subject watch as seen by the matcher.
type Watch struct {
	WatchID   int64
	SubjectID int64
	Query     string
}

type compiledWatch struct {
	subjectID int64
	tokens    []string
}

// Matcher holds pre-tokenized watch queries. It is safe for concurrent use.
type Matcher struct {
	watches []compiledWatch
}

// New compiles watches. Watches whose query squashes to nothing are ignored.
func New(watches []Watch) *Matcher {
	compiled := make([]compiledWatch, 0, len(watches))
	for _, w := range watches {
		tokens := strings.Fields(Squash(w.Query))
		if len(tokens) == 0 {
			continue
		}
		compiled = append(compiled, compiledWatch{subjectID: w.SubjectID, tokens: tokens})
	}
	return &Matcher{watches: compiled}
}

// Len returns the number of usable watches.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.watches)
}

// Match returns the sorted, distinct subject ids whose watch matched a.
func (m *Matcher) Match(a article.Normalized) []int64 {
	if m.Len() == 0 {
		return nil
	}

	haystack := " " + Squash(a.MatchText()) + " "
	seen := make(map[int64]struct{})
	var subjectIDs []int64
	for _, w := range m.watches {
		if _, dup := seen[w.subjectID]; dup {
			continue
		}
		if !containsAll(haystack, w.tokens) {
			continue
		}
		seen[w.subjectID] = struct{}{}
		subjectIDs = append(subjectIDs, w.subjectID)
	}
	sort.Slice(subjectIDs, func(i, j int) bool { return subjectIDs[i] < subjectIDs[j] })
	return subjectIDs
}

// Filter pairs each article with its matched subjects and drops articles that matched nothing.
func (m *Matcher) Filter(items []article.Normalized) []article.Candidate {
	out := make([]article.Candidate, 0, len(items))
	for _, item := range items {
		subjectIDs := m.Match(item)
		if len(subjectIDs) == 0 {
			continue
		}
		out = append(out, article.Candidate{Article: item, SubjectIDs: subjectIDs})
	}
	return out
}

// Squash lower-cases s, folds it through NFKD with combining marks removed,
// and collapses every run of non letter/digit runes to a single space.
func Squash(s string) string {
	folded, _, err := transform.String(foldChain(), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// transform.Chain carries state, so each call gets its own chain.
func foldChain() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
}

func containsAll(haystack string, tokens []string) bool {
	for _, token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}
