// Package vectorstore holds the ranking rules shared by the
// domain.VectorStore implementations in its subpackages.
package vectorstore

import (
	"sort"

	"docrag/internal/domain"
)

// DefaultMatchThreshold is the minimum similarity a match must reach.
const DefaultMatchThreshold = 0.3

// Rank orders matches by descending similarity, drops those below
// threshold and keeps at most count. Equal similarities keep their input
// order. A non-positive count keeps everything above the threshold.
func Rank(matches []domain.Match, threshold float32, count int) []domain.Match {
	kept := matches[:0:0]
	for _, m := range matches {
		if m.Similarity >= threshold {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Similarity > kept[j].Similarity })
	if count > 0 && len(kept) > count {
		kept = kept[:count]
	}
	return kept
}
