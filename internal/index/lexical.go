package index

import (
	"math"
	"sort"
)

// lexicalSnapshot is an immutable built view of the term index. Queries
// read a snapshot pointer; rebuilds construct a new one and swap it in.
type lexicalSnapshot struct {
	postings map[string]map[string]float64 // term -> chunk id -> tf weight
	idf      map[string]float64
	docCount int
}

// lexicalIndex is the mutable inverted index over stemmed terms. It keeps
// per-chunk term lists as the source of truth; the queryable snapshot is
// regenerated from them when the dirty flag is set. Locking is the owning
// Store's responsibility.
type lexicalIndex struct {
	terms map[string][]string // chunk id -> stemmed terms
	snap  *lexicalSnapshot
	dirty bool
}

func newLexicalIndex() *lexicalIndex {
	return &lexicalIndex{
		terms: make(map[string][]string),
		snap:  &lexicalSnapshot{postings: map[string]map[string]float64{}, idf: map[string]float64{}},
	}
}

func (l *lexicalIndex) add(id string, terms []string) {
	l.terms[id] = terms
	l.dirty = true
}

func (l *lexicalIndex) remove(id string) {
	if _, ok := l.terms[id]; ok {
		delete(l.terms, id)
		l.dirty = true
	}
}

// rebuild recomputes postings and idf from the term lists and swaps the
// snapshot. Callers see either the old snapshot or the new one, never a
// partially built state.
func (l *lexicalIndex) rebuild() {
	snap := &lexicalSnapshot{
		postings: make(map[string]map[string]float64),
		idf:      make(map[string]float64),
		docCount: len(l.terms),
	}

	df := make(map[string]int)
	for id, terms := range l.terms {
		counts := make(map[string]int, len(terms))
		for _, t := range terms {
			counts[t]++
		}
		for t, c := range counts {
			df[t]++
			if snap.postings[t] == nil {
				snap.postings[t] = make(map[string]float64)
			}
			snap.postings[t][id] = 1 + math.Log(float64(c))
		}
	}

	// Smoothed idf keeps rare-term scores finite on tiny corpora.
	n := float64(snap.docCount)
	for t, d := range df {
		snap.idf[t] = math.Log((1+n)/(1+float64(d))) + 1
	}

	l.snap = snap
	l.dirty = false
}

// search scores chunks by summed tf-idf over the query terms. Ties break
// on chunk id for determinism.
func (l *lexicalIndex) search(queryTerms []string, limit int, allow func(id string) bool) []scored {
	if limit <= 0 || len(queryTerms) == 0 {
		return nil
	}
	snap := l.snap

	acc := make(map[string]float64)
	for _, t := range queryTerms {
		posting, ok := snap.postings[t]
		if !ok {
			continue
		}
		idf := snap.idf[t]
		for id, tfw := range posting {
			if allow != nil && !allow(id) {
				continue
			}
			acc[id] += tfw * idf
		}
	}

	hits := make([]scored, 0, len(acc))
	for id, score := range acc {
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
