package index

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestFuseRRFHandComputed(t *testing.T) {
	// Chunk a: rank 1 semantic, rank 2 lexical.
	// Chunk b: rank 2 semantic, rank 1 lexical.
	// Chunk c: rank 3 semantic only.
	sem := []scored{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.8}, {ID: "c", Score: 0.2}}
	lex := []scored{{ID: "b", Score: 5.0}, {ID: "a", Score: 4.0}}

	fused := fuseRRF(60, sem, lex)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(fused))
	}

	wantA := 1.0/61 + 1.0/62
	wantB := 1.0/62 + 1.0/61
	wantC := 1.0 / 63

	byID := map[string]float64{}
	for _, f := range fused {
		byID[f.ID] = f.Score
	}
	if !almostEqual(byID["a"], wantA) {
		t.Errorf("a: got %v want %v", byID["a"], wantA)
	}
	if !almostEqual(byID["b"], wantB) {
		t.Errorf("b: got %v want %v", byID["b"], wantB)
	}
	if !almostEqual(byID["c"], wantC) {
		t.Errorf("c: got %v want %v", byID["c"], wantC)
	}
}

func TestFuseRRFTieBreaksOnID(t *testing.T) {
	// a and b have identical fused scores; a must sort first.
	sem := []scored{{ID: "b", Score: 1}, {ID: "a", Score: 0.5}}
	lex := []scored{{ID: "a", Score: 1}, {ID: "b", Score: 0.5}}

	fused := fuseRRF(60, sem, lex)
	if fused[0].ID != "a" || fused[1].ID != "b" {
		t.Errorf("tie must break on id: got %s then %s", fused[0].ID, fused[1].ID)
	}
}

func TestFuseRRFDeterministic(t *testing.T) {
	sem := []scored{{ID: "x"}, {ID: "y"}, {ID: "z"}}
	lex := []scored{{ID: "z"}, {ID: "x"}}

	first := fuseRRF(60, sem, lex)
	for i := 0; i < 20; i++ {
		again := fuseRRF(60, sem, lex)
		for j := range first {
			if again[j].ID != first[j].ID {
				t.Fatalf("run %d: order changed at %d", i, j)
			}
		}
	}
}

func TestFuseRRFSingleList(t *testing.T) {
	lex := []scored{{ID: "only", Score: 3}}
	fused := fuseRRF(60, nil, lex)
	if len(fused) != 1 || !almostEqual(fused[0].Score, 1.0/61) {
		t.Errorf("single-list fusion wrong: %+v", fused)
	}
}
