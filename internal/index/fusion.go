package index

import "sort"

// fuseRRF merges ranked lists with reciprocal rank fusion. A chunk at
// 1-based rank r in a list contributes 1/(k+r) to its fused score. Chunks
// absent from a list contribute nothing for it. Ties break on chunk id.
func fuseRRF(k int, lists ...[]scored) []scored {
	fused := make(map[string]float64)
	for _, list := range lists {
		for i, hit := range list {
			fused[hit.ID] += 1.0 / float64(k+i+1)
		}
	}

	out := make([]scored, 0, len(fused))
	for id, score := range fused {
		out = append(out, scored{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
