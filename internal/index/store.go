package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lectern/lectern/internal/adapter"
)

// Options holds the retrieval tunables for a Store.
type Options struct {
	FusionK     int // reciprocal rank fusion constant
	Overfetch   int // per-index candidate multiplier over TopK
	MinFiltered int // below this, a filtered query is retried unfiltered
	TopK        int // default result count
}

// DefaultOptions mirrors the shipped config defaults.
func DefaultOptions() Options {
	return Options{FusionK: 60, Overfetch: 3, MinFiltered: 2, TopK: 6}
}

// Result is one fused retrieval hit. Fused is the reciprocal-rank-fusion
// score the confidence gate operates on; Similarity is the raw cosine
// similarity when the semantic index contributed, else 0.
type Result struct {
	Chunk      Chunk
	Fused      float64
	Similarity float64
}

// QueryOptions narrows and shapes a single query.
type QueryOptions struct {
	Course   string              // restrict to one course if set
	SourceID string              // restrict to one source if set
	TopK     int                 // 0 means the store default
	Exclude  map[string]struct{} // chunk ids already shown to the user
}

// QueryResult carries the hits plus how the query was actually served.
type QueryResult struct {
	Results   []Result
	Degraded  bool // embedding failed, lexical-only ranking
	Broadened bool // filter produced too little, retried unfiltered
}

// Scores returns the fused scores in rank order, for the gate.
func (q QueryResult) Scores() []float64 {
	out := make([]float64, len(q.Results))
	for i, r := range q.Results {
		out[i] = r.Fused
	}
	return out
}

// SourceStat summarizes one ingested source for status and guide output.
type SourceStat struct {
	SourceID string
	Course   string
	Chunks   int
}

// Store is the hybrid dual-index retrieval store. All exported methods
// are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	chunks   map[string]Chunk
	semantic *semanticIndex
	lexical  *lexicalIndex

	embedder adapter.Embedder
	modelID  string
	opts     Options
	logger   *zap.Logger
}

// NewStore creates an empty store. modelID tags persisted snapshots so an
// index built with one embedder is never served by another.
func NewStore(embedder adapter.Embedder, modelID string, opts Options, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FusionK <= 0 {
		opts.FusionK = 60
	}
	if opts.Overfetch <= 0 {
		opts.Overfetch = 3
	}
	if opts.TopK <= 0 {
		opts.TopK = 6
	}
	return &Store{
		chunks:   make(map[string]Chunk),
		semantic: newSemanticIndex(),
		lexical:  newLexicalIndex(),
		embedder: embedder,
		modelID:  modelID,
		opts:     opts,
		logger:   logger,
	}
}

// Add ingests a batch of raw chunks. Malformed tuples are counted and
// skipped; chunks whose fingerprint already exists are counted as
// duplicates. The batch is all-or-nothing with respect to the index: an
// embedding failure leaves the store unchanged.
func (s *Store) Add(ctx context.Context, raw []RawChunk) (IngestReport, error) {
	var report IngestReport

	type pending struct {
		chunk Chunk
		norm  string
	}
	var news []pending
	seen := make(map[string]struct{})

	s.mu.RLock()
	for _, r := range raw {
		if !r.Valid() {
			report.Skipped++
			continue
		}
		norm := NormalizeText(r.Text)
		id := Fingerprint(r.SourceID, norm)
		if _, dup := s.chunks[id]; dup {
			report.Duplicate++
			continue
		}
		if _, dup := seen[id]; dup {
			report.Duplicate++
			continue
		}
		seen[id] = struct{}{}
		news = append(news, pending{
			chunk: Chunk{ID: id, SourceID: r.SourceID, Course: r.Course, Text: r.Text, Ordinal: r.Ordinal},
			norm:  norm,
		})
	}
	s.mu.RUnlock()

	if len(news) == 0 {
		return report, nil
	}

	texts := make([]string, len(news))
	for i, p := range news {
		texts[i] = p.norm
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return report, fmt.Errorf("index: embed batch of %d: %w", len(texts), err)
	}
	if len(vecs) != len(news) {
		return report, fmt.Errorf("index: embedder returned %d vectors for %d texts", len(vecs), len(news))
	}

	s.mu.Lock()
	for i, p := range news {
		if _, dup := s.chunks[p.chunk.ID]; dup {
			report.Duplicate++
			continue
		}
		s.chunks[p.chunk.ID] = p.chunk
		s.semantic.add(p.chunk.ID, vecs[i])
		s.lexical.add(p.chunk.ID, Tokenize(p.norm))
		report.Added++
	}
	s.mu.Unlock()

	s.logger.Info("ingested chunks",
		zap.Int("added", report.Added),
		zap.Int("duplicate", report.Duplicate),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// Query runs the hybrid search. If the query embedding fails, ranking
// degrades to the lexical index alone. If a course or source filter
// yields fewer than MinFiltered hits, the query is retried unfiltered.
func (s *Store) Query(ctx context.Context, text string, opts QueryOptions) (QueryResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = s.opts.TopK
	}

	var qvec []float32
	degraded := false
	vecs, err := s.embedder.Embed(ctx, []string{NormalizeText(text)})
	if err != nil || len(vecs) != 1 {
		degraded = true
		s.logger.Warn("query embedding failed, lexical-only ranking", zap.Error(err))
	} else {
		qvec = vecs[0]
	}

	terms := Tokenize(text)

	s.mu.Lock()
	if s.lexical.dirty {
		s.lexical.rebuild()
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := s.rank(qvec, terms, topK, opts, true)
	broadened := false
	if (opts.Course != "" || opts.SourceID != "") && len(results) < s.opts.MinFiltered {
		broadened = true
		results = s.rank(qvec, terms, topK, opts, false)
	}

	return QueryResult{Results: results, Degraded: degraded, Broadened: broadened}, nil
}

// rank fuses both indexes under the read lock. filtered=false ignores the
// course and source restrictions but keeps the exclusion set.
func (s *Store) rank(qvec []float32, terms []string, topK int, opts QueryOptions, filtered bool) []Result {
	allow := func(id string) bool {
		if _, skip := opts.Exclude[id]; skip {
			return false
		}
		if !filtered {
			return true
		}
		c, ok := s.chunks[id]
		if !ok {
			return false
		}
		if opts.Course != "" && c.Course != opts.Course {
			return false
		}
		if opts.SourceID != "" && c.SourceID != opts.SourceID {
			return false
		}
		return true
	}

	fetch := topK * s.opts.Overfetch

	var semHits []scored
	if qvec != nil && (s.semantic.dim == 0 || len(qvec) == s.semantic.dim) {
		semHits = s.semantic.search(qvec, fetch, allow)
	}
	lexHits := s.lexical.search(terms, fetch, allow)

	fused := fuseRRF(s.opts.FusionK, semHits, lexHits)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	sim := make(map[string]float64, len(semHits))
	for _, h := range semHits {
		sim[h.ID] = h.Score
	}

	out := make([]Result, 0, len(fused))
	for _, f := range fused {
		c, ok := s.chunks[f.ID]
		if !ok {
			continue
		}
		out = append(out, Result{Chunk: c, Fused: f.Score, Similarity: sim[f.ID]})
	}
	return out
}

// RebuildLexical forces a term index rebuild if anything changed since
// the last one. Returns true if a rebuild ran.
func (s *Store) RebuildLexical() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lexical.dirty {
		return false
	}
	s.lexical.rebuild()
	return true
}

// RemoveSource drops every chunk of a source. Returns the number removed.
func (s *Store) RemoveSource(sourceID string) int {
	return s.removeWhere(func(c Chunk) bool { return c.SourceID == sourceID })
}

// RemoveCourse drops every chunk of a course. Returns the number removed.
func (s *Store) RemoveCourse(course string) int {
	return s.removeWhere(func(c Chunk) bool { return c.Course == course })
}

func (s *Store) removeWhere(match func(Chunk) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, c := range s.chunks {
		if match(c) {
			delete(s.chunks, id)
			s.semantic.remove(id)
			s.lexical.remove(id)
			removed++
		}
	}
	return removed
}

// Reset drops the whole corpus.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]Chunk)
	s.semantic = newSemanticIndex()
	s.lexical = newLexicalIndex()
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// ModelID returns the embedder model tag the store was built with.
func (s *Store) ModelID() string {
	return s.modelID
}

// Stats lists each source with its chunk count, sorted by source id.
func (s *Store) Stats() []SourceStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[string]*SourceStat)
	for _, c := range s.chunks {
		st, ok := byID[c.SourceID]
		if !ok {
			st = &SourceStat{SourceID: c.SourceID, Course: c.Course}
			byID[c.SourceID] = st
		}
		st.Chunks++
	}

	out := make([]SourceStat, 0, len(byID))
	for _, st := range byID {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// SourcesForCourse lists the sources of one course, sorted by source id.
func (s *Store) SourcesForCourse(course string) []SourceStat {
	all := s.Stats()
	out := all[:0]
	for _, st := range all {
		if course == "" || st.Course == course {
			out = append(out, st)
		}
	}
	return out
}
