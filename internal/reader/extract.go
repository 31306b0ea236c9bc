package reader

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

// ExtractionError reports a page that parsed but yielded no readable text.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.URL, e.Reason)
}

// IsExtractionError reports whether err wraps an ExtractionError.
func IsExtractionError(err error) bool {
	var target *ExtractionError
	return errors.As(err, &target)
}

// Extracted is the readable content of one page.
type Extracted struct {
	Text    string
	HTML    string
	Byline  string
	Title   string
	Excerpt string
}

var (
	styleBlockPattern = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	stylesheetPattern = regexp.MustCompile(`(?is)<link\b[^>]*\brel\s*=\s*["']?[^"'>]*stylesheet[^>]*>`)
)

// Extract runs boilerplate removal over body. A failed first pass is retried
// once with <style> blocks and stylesheet links stripped.
func Extract(body []byte, pageURL, contentType string) (Extracted, error) {
	if strings.HasPrefix(strings.ToLower(contentType), "text/plain") {
		text := CleanText(string(body))
		if text == "" {
			return Extracted{}, &ExtractionError{URL: pageURL, Reason: "empty plain-text body"}
		}
		return Extracted{Text: text}, nil
	}

	parsedURL, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return Extracted{}, fmt.Errorf("parse page url: %w", err)
	}

	out, err := extractOnce(body, parsedURL)
	if err == nil || IsExtractionError(err) {
		return out, err
	}

	out, retryErr := extractOnce(StripStylesheets(body), parsedURL)
	if retryErr != nil {
		return Extracted{}, fmt.Errorf("%w; retry without stylesheets: %w", err, retryErr)
	}
	return out, nil
}

func extractOnce(body []byte, pageURL *url.URL) (Extracted, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return Extracted{}, fmt.Errorf("readability parse: %w", err)
	}

	var renderedText bytes.Buffer
	if err := article.RenderText(&renderedText); err != nil {
		return Extracted{}, fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(renderedText.String())
	if text == "" {
		return Extracted{}, &ExtractionError{URL: pageURL.String(), Reason: "empty extracted text"}
	}

	var renderedHTML bytes.Buffer
	contentHTML := ""
	if err := article.RenderHTML(&renderedHTML); err == nil {
		contentHTML = strings.TrimSpace(renderedHTML.String())
	}

	return Extracted{
		Text:    text,
		HTML:    contentHTML,
		Byline:  strings.TrimSpace(article.Byline()),
		Title:   strings.TrimSpace(article.Title()),
		Excerpt: CleanText(article.Excerpt()),
	}, nil
}

// StripStylesheets removes <style> elements and rel=stylesheet links.
func StripStylesheets(body []byte) []byte {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		doc.Find(`style, link[rel~="stylesheet"], link[rel~="Stylesheet"]`).Remove()
		if rendered, renderErr := doc.Html(); renderErr == nil {
			return []byte(rendered)
		}
	}

	stripped := styleBlockPattern.ReplaceAll(body, nil)
	return stylesheetPattern.ReplaceAll(stripped, nil)
}
