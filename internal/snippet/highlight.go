package snippet

import (
	"regexp"
	"strings"
)

// Segment is a piece of highlighted text.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match"`
}

// Highlight splits text into segments, marking case-insensitive literal
// occurrences of the whitespace-separated query terms.
// Concatenating the segment texts gives back text.
func Highlight(text, query string) []Segment {
	terms := strings.Fields(query)
	if len(terms) == 0 || text == "" {
		return []Segment{{Text: text}}
	}
	for i, t := range terms {
		terms[i] = regexp.QuoteMeta(t)
	}
	re, err := regexp.Compile("(?i)(?:" + strings.Join(terms, "|") + ")")
	if err != nil {
		return []Segment{{Text: text}}
	}

	var out []Segment
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		if loc[0] > last {
			out = append(out, Segment{Text: text[last:loc[0]]})
		}
		out = append(out, Segment{Text: text[loc[0]:loc[1]], Match: true})
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}
