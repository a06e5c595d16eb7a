// Package summarizer builds a short answer from the top search snippets,
// either extractively or through an LLM with an extractive fallback.
package summarizer

import (
	"strings"
	"unicode/utf8"
)

// MinCandidateLength is the length a candidate sentence must exceed, in
// characters, to be considered as an answer.
const MinCandidateLength = 20

func isAnswerBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '\u0964', '\u0DF4':
		return true
	}
	return false
}

// Extractive returns the first sentence of text that mentions at least
// min(2, #query words) query words, or the first sentence when none does.
// A query word also matches when the sentence contains it minus its last
// character, which catches simple plurals. Sentences of MinCandidateLength
// characters or fewer are ignored. Returns "" when no sentence qualifies.
func Extractive(query, text string) string {
	var candidates []string
	for _, part := range strings.FieldsFunc(text, isAnswerBoundary) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > MinCandidateLength {
			candidates = append(candidates, part)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	words := strings.Fields(strings.ToLower(query))
	need := min(2, len(words))
	for _, c := range candidates {
		if countMatches(strings.ToLower(c), words) >= need {
			return c
		}
	}
	return candidates[0]
}

func countMatches(sentence string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(sentence, w) {
			n++
			continue
		}
		// A one-rune word has an empty stem, which would match every
		// sentence; such words only match in full.
		_, size := utf8.DecodeLastRuneInString(w)
		if stem := w[:len(w)-size]; stem != "" && strings.Contains(sentence, stem) {
			n++
		}
	}
	return n
}
