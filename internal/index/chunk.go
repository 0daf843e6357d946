// Package index implements the hybrid retrieval core: a semantic vector
// index and a lexical term index over document chunks, fused with
// reciprocal rank fusion, plus the confidence gate that decides whether
// retrieved material is strong enough to answer from.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Chunk is one indexed passage of course material.
type Chunk struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Course   string `json:"course"`
	Text     string `json:"text"`
	Ordinal  int    `json:"ordinal"`
}

// RawChunk is an ingestion input before fingerprinting. Course may be
// empty; SourceID and Text are required.
type RawChunk struct {
	SourceID string
	Course   string
	Text     string
	Ordinal  int
}

// Valid reports whether the tuple has the required fields.
func (r RawChunk) Valid() bool {
	return r.SourceID != "" && strings.TrimSpace(r.Text) != ""
}

// NormalizeText lowercases, collapses runs of whitespace to single spaces,
// and trims. The normalized form is what gets fingerprinted and embedded,
// so two chunks differing only in whitespace or case are the same chunk.
func NormalizeText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// Fingerprint derives the stable chunk ID from the source and the
// normalized text. Re-ingesting the same material yields the same ID.
func Fingerprint(sourceID, normalizedText string) string {
	h := sha256.Sum256([]byte(sourceID + "\x00" + normalizedText))
	return hex.EncodeToString(h[:])
}

// IngestReport summarizes one ingestion batch.
type IngestReport struct {
	Added     int
	Duplicate int
	Skipped   int // malformed tuples
}
