// Package article holds the adapter output shape shared by matching, persistence and hydration.
package article

import (
	"strings"
	"time"
)

// Normalized is one article as returned by a source adapter, before persistence.
type Normalized struct {
	ExternalID      string
	URL             string
	Title           string
	Summary         string
	Excerpt         string
	HTML            string
	Author          string
	Published       time.Time
	Section         string
	Language        string
	PublicationSlug string
}

// MatchText is the text a watch query is matched against.
func (a Normalized) MatchText() string {
	body := strings.TrimSpace(a.Excerpt)
	if body == "" {
		body = strings.TrimSpace(a.Summary)
	}
	return strings.TrimSpace(a.Title + " " + body)
}

// Candidate is a normalized article with the subjects whose watch it matched.
type Candidate struct {
	Article    Normalized
	SubjectIDs []int64
}

// Section names used for feed selection and article tagging.
const (
	SectionNews     = "news"
	SectionPolitics = "politics"
	SectionScience  = "science"
	SectionCulture  = "culture"
)

// NormalizeSection folds feed-provided section labels onto the known set.
func NormalizeSection(raw string) string {
	section := strings.ToLower(strings.TrimSpace(raw))
	switch section {
	case "", "top", "news":
		return SectionNews
	default:
		return section
	}
}
