package sentiment

import (
	"math"
	"strings"
	"testing"
)

func TestScoreOrdering(t *testing.T) {
	t.Parallel()

	good := Score("good")
	if good <= 0 {
		t.Fatalf("Score(good) = %v, want > 0", good)
	}
	if veryGood := Score("very good"); veryGood <= good {
		t.Fatalf("Score(very good) = %v, want > %v", veryGood, good)
	}
	if notGood := Score("not good"); notGood >= 0 {
		t.Fatalf("Score(not good) = %v, want < 0", notGood)
	}
	if got := Score(""); got != 0 {
		t.Fatalf("Score(\"\") = %v, want 0", got)
	}
	if got := Score("the committee met on tuesday"); got != 0 {
		t.Fatalf("Score(neutral) = %v, want 0", got)
	}
}

func TestScoreModifiersAreConsumedOnce(t *testing.T) {
	t.Parallel()

	// "not" applies to "bad" only; "good" afterwards counts positively again.
	got := Score("not bad, good")
	want := math.Tanh(2.0 / 5.0)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Score(not bad, good) = %v, want %v", got, want)
	}

	// Double negation cancels.
	if got := Score("not never good"); got <= 0 {
		t.Fatalf("Score(not never good) = %v, want > 0", got)
	}

	boosted := Score("extremely bad")
	if math.Abs(boosted-math.Tanh(-1.5/5.0)) > 1e-9 {
		t.Fatalf("Score(extremely bad) = %v", boosted)
	}
}

func TestScoreBoundedAndSaturating(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("great growth and success ", 500)
	got := Score(long)
	if got > 1 || got < -1 {
		t.Fatalf("Score(long) = %v out of range", got)
	}
	if got < 0.999 {
		t.Fatalf("Score(long) = %v, want saturated near 1", got)
	}

	neg := Score(strings.Repeat("loss decline risk ", 500))
	if neg < -1 || neg > -0.999 {
		t.Fatalf("Score(long negative) = %v, want saturated near -1", neg)
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := Tokenize("Don't PANIC: growth-rate 3.5% 'quoted'")
	want := []string{"don't", "panic", "growth", "rate", "3", "5", "quoted"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}
