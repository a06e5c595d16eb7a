// Package normalize produces the canonical text form that chunk offsets,
// embeddings and cache keys are computed over.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningDiacritics is the Combining Diacritical Marks block. Marks from
// other blocks (Sinhala vowel signs, virama) are part of the script and stay.
var combiningDiacritics = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

var punctuation = strings.NewReplacer(
	"“", `"`, "”", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"–", "-", "—", "-",
)

// Normalizer maps raw document text to its canonical form.
// The zero value does not strip diacritics; use New for the defaults.
type Normalizer struct {
	stripDiacritics bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithDiacriticStripping toggles removal of Latin combining diacritics.
func WithDiacriticStripping(on bool) Option {
	return func(n *Normalizer) { n.stripDiacritics = on }
}

// New returns a Normalizer with diacritic stripping enabled.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{stripDiacritics: true}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize applies the default Normalizer.
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}

// Normalize returns the canonical form of text. It is idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	s := norm.NFC.String(text)
	if n.stripDiacritics {
		s = stripDiacritics(s)
	}
	s = punctuation.Replace(s)
	s = strings.TrimLeftFunc(s, isSpaceOrBOM)
	return strings.Join(strings.Fields(s), " ")
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningDiacritics)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isSpaceOrBOM(r rune) bool {
	return r == '\uFEFF' || unicode.IsSpace(r)
}
