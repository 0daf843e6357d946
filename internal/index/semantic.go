package index

import (
	"math"
	"sort"
)

// scored is an intermediate ranked hit from a single index.
type scored struct {
	ID    string
	Score float64
}

// semanticIndex is an in-memory brute-force cosine index. Vectors are
// stored L2-normalized so similarity reduces to a dot product. Locking is
// the owning Store's responsibility.
type semanticIndex struct {
	vecs map[string][]float32
	dim  int
}

func newSemanticIndex() *semanticIndex {
	return &semanticIndex{vecs: make(map[string][]float32)}
}

func (s *semanticIndex) add(id string, vec []float32) {
	v := make([]float32, len(vec))
	copy(v, vec)
	l2normalize(v)
	s.vecs[id] = v
	if s.dim == 0 {
		s.dim = len(v)
	}
}

func (s *semanticIndex) remove(id string) {
	delete(s.vecs, id)
}

// search returns the top limit ids by cosine similarity among those the
// allow predicate admits. Ties break on id for determinism.
func (s *semanticIndex) search(query []float32, limit int, allow func(id string) bool) []scored {
	if limit <= 0 || len(s.vecs) == 0 {
		return nil
	}
	q := make([]float32, len(query))
	copy(q, query)
	l2normalize(q)

	hits := make([]scored, 0, len(s.vecs))
	for id, vec := range s.vecs {
		if allow != nil && !allow(id) {
			continue
		}
		score := dot(q, vec)
		if score <= 0 {
			// Orthogonal or opposed vectors are not semantic hits.
			continue
		}
		hits = append(hits, scored{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
