package textutil

import (
	"regexp"
	"strings"
)

// nonWordPattern matches anything that is not a letter, digit, underscore or space.
var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// NormalizeTitle lowercases a title, strips punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(title), "")
	return strings.Join(strings.Fields(cleaned), " ")
}

// TitleSimilarity scores two titles in [0,1].
//
// Normalized titles that are equal score 1. Otherwise the score is the number
// of positions holding the same character divided by the longer title's length.
// The comparison is positional: an inserted word shifts every later character,
// so reordered or prefixed titles score low even when they share most words.
func TitleSimilarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	na := []rune(NormalizeTitle(a))
	nb := []rune(NormalizeTitle(b))
	if string(na) == string(nb) {
		return 1
	}
	longest := max(len(na), len(nb))
	if longest == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < min(len(na), len(nb)); i++ {
		if na[i] == nb[i] {
			matches++
		}
	}
	return float64(matches) / float64(longest)
}
