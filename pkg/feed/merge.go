package feed

import (
	"sort"

	"dmfeed/pkg/models"
)

// Merge returns the union of window and page keyed by message id. A page
// entry replaces the window entry with the same id; among duplicates inside
// page the last one wins. The result is sorted ascending by timestamp with
// a stable sort, so equal timestamps keep their relative order. Neither
// input is modified.
func Merge(window, page []models.Message) []models.Message {
	pos := make(map[string]int, len(window)+len(page))
	out := make([]models.Message, 0, len(window)+len(page))
	for _, src := range [][]models.Message{window, page} {
		for _, m := range src {
			if i, ok := pos[m.ID]; ok {
				out[i] = m
				continue
			}
			pos[m.ID] = len(out)
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// Ascending returns page reversed. Store pages arrive newest first.
func Ascending(page []models.Message) []models.Message {
	out := make([]models.Message, len(page))
	for i, m := range page {
		out[len(page)-1-i] = m
	}
	return out
}
