package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// GapMarker is the canonical blank written into sentence templates.
const GapMarker = "___"

var gapPattern = regexp.MustCompile(`_{3,}`)

// CountGaps returns how many gap markers appear in a sentence template.
// A run of three or more underscores counts as one marker.
func CountGaps(sentence string) int {
	return len(gapPattern.FindAllStringIndex(sentence, -1))
}

// NormalizeSentence produces the sentence part of the dedup key:
// surrounding whitespace trimmed, then Unicode case folded.
func NormalizeSentence(sentence string) string {
	return cases.Fold().String(strings.TrimSpace(sentence))
}

// NormalizeAnswer folds case and strips combining marks, so that
// "Está", "esta" and "ESTA" compare equal.
func NormalizeAnswer(answer string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.TrimSpace(answer))
	if err != nil {
		stripped = strings.TrimSpace(answer)
	}
	return cases.Fold().String(stripped)
}

// NormalizeAnswers applies NormalizeAnswer to each value and drops empties and repeats.
func NormalizeAnswers(answers []string) []string {
	seen := make(map[string]struct{}, len(answers))
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		n := NormalizeAnswer(a)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
