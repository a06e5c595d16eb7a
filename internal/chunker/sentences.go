package chunker

import (
	"unicode"
	"unicode/utf8"

	"docrag/internal/normalize"
)

// Sentence is one sentence of normalized text.
// Text == source[Start:End]; offsets are in bytes.
type Sentence struct {
	Text  string
	Start int
	End   int
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '\u0DF4':
		return true
	}
	return false
}

// Split cuts text after every sentence-final mark that is immediately
// followed by whitespace. Text after the last mark forms a final sentence.
// The whitespace between sentences belongs to no sentence.
func Split(text string) []Sentence {
	var out []Sentence
	start, end := -1, 0
	prevTerminal := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 && prevTerminal {
				out = append(out, Sentence{Text: text[start:end], Start: start, End: end})
				start = -1
			}
			prevTerminal = false
			continue
		}
		if start < 0 {
			start = i
		}
		end = i + utf8.RuneLen(r)
		prevTerminal = isTerminal(r)
	}
	if start >= 0 {
		out = append(out, Sentence{Text: text[start:end], Start: start, End: end})
	}
	return out
}

// TokenizeSentences normalizes text and returns its sentences.
func TokenizeSentences(text string) []string {
	sentences := Split(normalize.Normalize(text))
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = s.Text
	}
	return out
}
