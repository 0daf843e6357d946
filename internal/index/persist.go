package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// snapshotVersion changes whenever the on-disk layout does. A mismatch
// invalidates the snapshot rather than risking a misread.
const snapshotVersion = 1

// ErrIndexUnavailable means a persisted snapshot exists but cannot be
// served (version or embedder model mismatch, or corruption). The caller
// should cold-start and re-ingest.
var ErrIndexUnavailable = errors.New("index: persisted snapshot unusable")

type snapshot struct {
	Version int                  `json:"version"`
	Model   string               `json:"model"`
	Chunks  []Chunk              `json:"chunks"`
	Vectors map[string][]float32 `json:"vectors"`
}

// Save writes the store to path atomically: the snapshot goes to a temp
// file in the same directory, then renames over the target.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Version: snapshotVersion,
		Model:   s.modelID,
		Chunks:  make([]Chunk, 0, len(s.chunks)),
		Vectors: make(map[string][]float32, len(s.semantic.vecs)),
	}
	for _, c := range s.chunks {
		snap.Chunks = append(snap.Chunks, c)
	}
	for id, v := range s.semantic.vecs {
		snap.Vectors[id] = v
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index: save: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.json")
	if err != nil {
		return fmt.Errorf("index: save: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("index: save encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("index: save close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("index: save rename: %w", err)
	}

	s.logger.Info("index snapshot written", zap.String("path", path), zap.Int("chunks", len(snap.Chunks)))
	return nil
}

// Load replaces the store contents from a snapshot at path. A missing
// file is a clean cold start and returns (false, nil). A snapshot with
// the wrong version or embedder model returns ErrIndexUnavailable; the
// store is left empty so the caller can re-ingest.
func (s *Store) Load(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: load: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, fmt.Errorf("%w: decode: %v", ErrIndexUnavailable, err)
	}
	if snap.Version != snapshotVersion {
		return false, fmt.Errorf("%w: snapshot version %d, want %d", ErrIndexUnavailable, snap.Version, snapshotVersion)
	}
	if snap.Model != s.modelID {
		return false, fmt.Errorf("%w: snapshot embedded with %q, store uses %q", ErrIndexUnavailable, snap.Model, s.modelID)
	}

	// Build aside and swap, so a corrupt snapshot never leaves the store
	// half-populated.
	chunks := make(map[string]Chunk, len(snap.Chunks))
	semantic := newSemanticIndex()
	lexical := newLexicalIndex()

	for _, c := range snap.Chunks {
		vec, ok := snap.Vectors[c.ID]
		if !ok {
			return false, fmt.Errorf("%w: chunk %s has no vector", ErrIndexUnavailable, c.ID)
		}
		chunks[c.ID] = c
		semantic.add(c.ID, vec)
		lexical.add(c.ID, Tokenize(NormalizeText(c.Text)))
	}
	lexical.rebuild()

	s.mu.Lock()
	s.chunks = chunks
	s.semantic = semantic
	s.lexical = lexical
	s.mu.Unlock()

	s.logger.Info("index snapshot loaded", zap.String("path", path), zap.Int("chunks", len(chunks)))
	return true, nil
}
