package snippet

import "docrag/internal/domain"

// Group is the snippets of one file, in result order.
type Group struct {
	File     string           `json:"file"`
	Snippets []domain.Snippet `json:"snippets"`
}

// GroupByFile buckets snippets by file label. Groups appear in the order
// their first snippet appears.
func GroupByFile(snippets []domain.Snippet) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, s := range snippets {
		i, ok := index[s.File]
		if !ok {
			i = len(groups)
			index[s.File] = i
			groups = append(groups, Group{File: s.File})
		}
		groups[i].Snippets = append(groups[i].Snippets, s)
	}
	return groups
}
