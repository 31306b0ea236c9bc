// Package sentiment implements a small lexicon scorer for extracted article text.
package sentiment

import (
	"math"
	"strings"
	"unicode"
)

const (
	intensifierBoost = 1.5
	saturation       = 5.0
)

var (
	positive = wordSet("good", "great", "gain", "improve", "success", "benefit", "positive", "growth")
	negative = wordSet("bad", "worse", "loss", "decline", "risk", "fail", "negative", "drop")

	negators     = wordSet("not", "no", "never", "hardly", "scarcely")
	intensifiers = wordSet("very", "extremely", "highly", "strongly")
)

// Score returns a sentiment value in [-1, 1]. A negator flips and an
// intensifier boosts only the next sentiment-bearing word.
func Score(text string) float64 {
	var (
		score float64
		flip  bool
		boost = 1.0
	)

	for _, token := range Tokenize(text) {
		if _, ok := negators[token]; ok {
			flip = !flip
			continue
		}
		if _, ok := intensifiers[token]; ok {
			boost = intensifierBoost
			continue
		}

		delta := 0.0
		if _, ok := positive[token]; ok {
			delta = 1
		} else if _, ok := negative[token]; ok {
			delta = -1
		}
		if delta == 0 {
			continue
		}

		if flip {
			delta = -delta
		}
		score += delta * boost
		flip = false
		boost = 1
	}

	return clamp(math.Tanh(score / saturation))
}

// Tokenize lower-cases text and splits it into letter/number runs.
// Apostrophes inside a word are kept so contractions stay one token.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\'' && r != '’'
	})

	tokens := fields[:0]
	for _, field := range fields {
		field = strings.Trim(field, "'’")
		if field != "" {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}

func wordSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
