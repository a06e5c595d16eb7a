// Package snippet holds presentation helpers for search snippets: context
// expansion, grouping by file and query-term highlighting.
package snippet

import (
	"strings"
	"unicode/utf8"
)

const (
	// Ellipsis marks text cut from either side of an expanded snippet.
	Ellipsis = "..."
	// DefaultContextSize is the number of characters added on each side.
	DefaultContextSize = 300
)

// Expand returns content[start:end] widened by contextSize characters on
// each side and clamped to the content. An Ellipsis is prepended when the
// window starts after the beginning of content and appended when it ends
// before the end. Offsets are byte offsets; out-of-range or misaligned
// offsets are clamped to the nearest rune boundary, so Expand never panics.
func Expand(content string, start, end, contextSize int) string {
	if contextSize < 0 {
		contextSize = 0
	}
	start = alignBack(content, clamp(start, 0, len(content)))
	end = alignForward(content, clamp(end, start, len(content)))

	from := start
	for n := 0; n < contextSize && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(content[:from])
		from -= size
	}
	to := end
	for n := 0; n < contextSize && to < len(content); n++ {
		_, size := utf8.DecodeRuneInString(content[to:])
		to += size
	}

	var b strings.Builder
	b.Grow(to - from + 2*len(Ellipsis))
	if from > 0 {
		b.WriteString(Ellipsis)
	}
	b.WriteString(content[from:to])
	if to < len(content) {
		b.WriteString(Ellipsis)
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func alignBack(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func alignForward(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
