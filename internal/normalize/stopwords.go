package normalize

import "strings"

// Set is a closed list of stop-words.
type Set map[string]struct{}

// NewSet builds a Set from words.
func NewSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}

// Contains reports whether word, lower-cased, is in the set.
func (s Set) Contains(word string) bool {
	_, ok := s[strings.ToLower(word)]
	return ok
}

// SinhalaStopwords is the default stop-word list.
var SinhalaStopwords = NewSet(
	"මම", "ඔබ", "ඔහු", "ඇය", "අපි", "ඔවුන්", "මේ", "මෙය", "එය", "එම",
	"සහ", "හා", "ද", "වැනි", "අතර", "තවත්", "ඉතා", "පමණක්", "නමුත්", "එහෙයින්",
)

// EnglishStopwords holds common English function words.
var EnglishStopwords = NewSet(
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
	"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that",
	"these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such",
	"into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off",
	"own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
)

// tokenPunctuation is stripped from a token before the stop-word lookup.
const tokenPunctuation = `.?!,'"`

// FilterStopwords drops whitespace-separated tokens found in stop.
// Output tokens are joined by single spaces, so offsets into the input are
// not preserved; never run it before chunking.
func FilterStopwords(text string, stop Set) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		key := strings.Map(func(r rune) rune {
			if strings.ContainsRune(tokenPunctuation, r) {
				return -1
			}
			return r
		}, f)
		if stop.Contains(key) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
