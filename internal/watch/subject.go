package watch

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SubjectType mirrors the track.subject_type enum.
type SubjectType string

const (
	SubjectPerson       SubjectType = "PERSON"
	SubjectOrganization SubjectType = "ORGANIZATION"
	SubjectPolicy       SubjectType = "POLICY"
	SubjectTopic        SubjectType = "TOPIC"
)

// ParseSubjectType accepts any casing; blank means TOPIC.
func ParseSubjectType(raw string) (SubjectType, error) {
	switch t := SubjectType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case "":
		return SubjectTopic, nil
	case SubjectPerson, SubjectOrganization, SubjectPolicy, SubjectTopic:
		return t, nil
	default:
		return "", fmt.Errorf("unknown subject type %q", raw)
	}
}

// SubjectSlug is the unique slug for a subject name and type, e.g. "openai-organization".
func SubjectSlug(name string, subjectType SubjectType) string {
	return Slugify(name + "-" + string(subjectType))
}

// Slugify folds accents, lower-cases and joins alphanumeric runs with "-".
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// DefaultQuery quotes the subject name.
func DefaultQuery(subjectName string) string {
	return `"` + strings.TrimSpace(subjectName) + `"`
}
