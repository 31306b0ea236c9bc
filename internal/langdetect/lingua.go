// Package langdetect guesses the language of extracted article text.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

const (
	minLetters   = 20
	sampleLength = 4000
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Languages covered by the catalog feeds. Restricting the set keeps the
// preloaded models small and detection stable on short texts.
var supported = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Polish,
}

// DetectISO6391 returns a two-letter language code, or "" when the text is
// too short to classify.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}
	if runes := []rune(sample); len(runes) > sampleLength {
		sample = string(runes[:sampleLength])
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < minLetters {
		return ""
	}

	lang, ok := getDetector().DetectLanguageOf(sample)
	if !ok {
		return ""
	}

	code := strings.ToLower(lang.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(supported...).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
