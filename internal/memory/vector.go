package memory

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// float32SliceToBlob serializes a vector for sqlite-vec (little-endian
// float32, the vec0 wire format).
func float32SliceToBlob(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// UpsertFactVector stores the embedding for a fact in the vec_facts
// virtual table. Errors are returned so the caller can degrade to
// recency ordering when the extension is unavailable.
func (s *Store) UpsertFactVector(factID string, vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	// vec0 has no upsert; delete then insert.
	if _, err := s.db.Conn().Exec(`DELETE FROM vec_facts WHERE id = ?`, factID); err != nil {
		return fmt.Errorf("store: clear fact vector: %w", err)
	}
	if _, err := s.db.Conn().Exec(
		`INSERT INTO vec_facts (id, embedding) VALUES (?, ?)`,
		factID, float32SliceToBlob(vec)); err != nil {
		return fmt.Errorf("store: insert fact vector: %w", err)
	}
	return nil
}

// RelevantFacts returns the owner's facts nearest to the query vector,
// in ascending vec0 distance order.
func (s *Store) RelevantFacts(queryVec []float32, owner string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 10
	}

	// Over-fetch: the KNN scan is not owner-scoped, so pull extra and
	// filter by owner afterwards.
	rows, err := s.db.Conn().Query(`
		SELECT id FROM vec_facts
		WHERE embedding MATCH ?
		ORDER BY distance LIMIT ?`,
		float32SliceToBlob(queryVec), limit*4)
	if err != nil {
		return nil, fmt.Errorf("store: fact vector search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan vector id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, owner)

	factRows, err := s.db.Conn().Query(fmt.Sprintf(`
		SELECT id, owner, kind, key, value, confidence, ttl_days, created_at, updated_at
		FROM facts WHERE id IN (%s) AND owner = ?`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("store: fetch relevant facts: %w", err)
	}
	defer factRows.Close()

	facts, err := scanFacts(factRows)
	if err != nil {
		return nil, err
	}

	// Restore KNN order, which the IN query discards.
	ordered := make([]Fact, 0, len(facts))
	for _, id := range ids {
		for _, f := range facts {
			if f.ID == id {
				ordered = append(ordered, f)
				break
			}
		}
	}
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}
