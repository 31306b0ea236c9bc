// Package reader fetches article pages and extracts their readable text.
package reader

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		if clean := strings.Join(strings.Fields(line), " "); clean != "" {
			paragraphs = append(paragraphs, clean)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

// CollapseExcerpt collapses all whitespace to single spaces and keeps the first maxChars runes.
func CollapseExcerpt(text string, maxChars int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if maxChars <= 0 {
		return collapsed
	}
	runes := []rune(collapsed)
	if len(runes) <= maxChars {
		return collapsed
	}
	return strings.TrimSpace(string(runes[:maxChars]))
}

// HTMLToText renders an HTML fragment as plain text. Input without markup is only whitespace-cleaned.
func HTMLToText(fragment string) string {
	trimmed := strings.TrimSpace(fragment)
	if trimmed == "" {
		return ""
	}
	if !strings.ContainsAny(trimmed, "<&") {
		return strings.Join(strings.Fields(trimmed), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return strings.Join(strings.Fields(trimmed), " ")
	}
	doc.Find("script, style, noscript").Remove()
	// Block boundaries carry no whitespace of their own in the DOM.
	doc.Find("p, div, li, br, blockquote, h1, h2, h3, h4, h5, h6, tr, td").AfterHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
