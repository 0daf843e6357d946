package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lectern/lectern/internal/db"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestUpsertFactOverwrites(t *testing.T) {
	s := setupTestDB(t)

	id1, err := s.UpsertFact(Fact{Owner: "amal", Kind: KindPreference, Key: "study-time", Value: "evenings"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	id2, err := s.UpsertFact(Fact{Owner: "amal", Kind: KindPreference, Key: "study-time", Value: "early mornings"})
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("same (owner, kind, key) must keep the same row: %s vs %s", id1, id2)
	}

	facts, err := s.FactsByKind("amal", KindPreference, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(facts))
	}
	if facts[0].Value != "early mornings" {
		t.Errorf("value not overwritten: %q", facts[0].Value)
	}
}

func TestUpsertFactScopedByOwner(t *testing.T) {
	s := setupTestDB(t)

	if _, err := s.UpsertFact(Fact{Owner: "amal", Kind: KindFact, Key: "major", Value: "biology"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.UpsertFact(Fact{Owner: "jesse", Kind: KindFact, Key: "major", Value: "history"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	facts, err := s.ListFacts("amal", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(facts) != 1 || facts[0].Value != "biology" {
		t.Errorf("owner scoping broken: %+v", facts)
	}
}

func TestUpsertFactInvalidKind(t *testing.T) {
	s := setupTestDB(t)
	if _, err := s.UpsertFact(Fact{Owner: "amal", Kind: "vibe", Key: "k", Value: "v"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDeleteFact(t *testing.T) {
	s := setupTestDB(t)
	if _, err := s.UpsertFact(Fact{Owner: "amal", Kind: KindGoal, Key: "gpa", Value: "3.8"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deleted, err := s.DeleteFact("amal", KindGoal, "gpa")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("expected a row to be deleted")
	}

	deleted, err = s.DeleteFact("amal", KindGoal, "gpa")
	if err != nil {
		t.Fatalf("re-delete: %v", err)
	}
	if deleted {
		t.Error("second delete must be a no-op")
	}
}

func TestSweepExpiredFacts(t *testing.T) {
	s := setupTestDB(t)

	id, err := s.UpsertFact(Fact{Owner: "amal", Kind: KindExam, Key: "bio-midterm", Value: "March 3", TTLDays: 7})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.UpsertFact(Fact{Owner: "amal", Kind: KindFact, Key: "major", Value: "biology"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Backdate the exam fact past its ttl.
	if _, err := s.Conn().Exec(
		`UPDATE facts SET updated_at = datetime('now', '-30 days') WHERE id = ?`, id); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	removed, err := s.SweepExpiredFacts()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 expired fact removed, got %d", removed)
	}

	facts, err := s.ListFacts("amal", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(facts) != 1 || facts[0].Key != "major" {
		t.Errorf("permanent fact should survive the sweep: %+v", facts)
	}
}

func TestMasteryUpsertAndWeakTopics(t *testing.T) {
	s := setupTestDB(t)

	for _, m := range []Mastery{
		{Owner: "amal", Topic: "photosynthesis", Level: 0.2},
		{Owner: "amal", Topic: "cell division", Level: 0.35},
		{Owner: "amal", Topic: "genetics", Level: 0.9},
	} {
		if err := s.UpsertMastery(m); err != nil {
			t.Fatalf("upsert mastery: %v", err)
		}
	}

	// Re-upsert clamps out-of-range levels.
	if err := s.UpsertMastery(Mastery{Owner: "amal", Topic: "genetics", Level: 1.7}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	weak, err := s.WeakTopics("amal", 0.4, 10)
	if err != nil {
		t.Fatalf("weak topics: %v", err)
	}
	if len(weak) != 2 {
		t.Fatalf("expected 2 weak topics, got %d", len(weak))
	}
	if weak[0].Topic != "photosynthesis" {
		t.Errorf("weakest topic must come first, got %q", weak[0].Topic)
	}

	var level float64
	if err := s.Conn().QueryRow(
		`SELECT level FROM mastery WHERE owner = 'amal' AND topic = 'genetics'`).Scan(&level); err != nil {
		t.Fatalf("query level: %v", err)
	}
	if level != 1.0 {
		t.Errorf("level must clamp to 1.0, got %v", level)
	}
}

func TestRecentTurnsOrder(t *testing.T) {
	s := setupTestDB(t)

	for _, content := range []string{"first", "second", "third"} {
		if _, err := s.InsertTurn(Turn{Owner: "amal", Role: "user", Content: content}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	turns, err := s.RecentTurns("amal", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Content != "second" || turns[1].Content != "third" {
		t.Errorf("expected the newest two oldest-first, got %q then %q", turns[0].Content, turns[1].Content)
	}
}

func TestSweepOldTurns(t *testing.T) {
	s := setupTestDB(t)

	seq, err := s.InsertTurn(Turn{Owner: "amal", Role: "user", Content: "ancient question"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.InsertTurn(Turn{Owner: "amal", Role: "user", Content: "fresh question"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := s.Conn().Exec(
		`UPDATE turns SET created_at = datetime('now', '-10 days') WHERE seq = ?`, seq); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	removed, err := s.SweepOldTurns(72 * time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 old turn removed, got %d", removed)
	}
}

func TestSessionBookkeeping(t *testing.T) {
	s := setupTestDB(t)

	if err := s.RecordSession(Session{Owner: "amal", Question: "what is atp", Mode: "teach", ModelUsed: "gpt-4o", TokensUsed: 812}); err != nil {
		t.Fatalf("record: %v", err)
	}

	n, err := s.SessionCount("amal")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 session, got %d", n)
	}
}

func TestPurgeOwnerLeavesOthers(t *testing.T) {
	s := setupTestDB(t)

	for _, owner := range []string{"amal", "bea"} {
		if _, err := s.UpsertFact(Fact{Owner: owner, Kind: KindGoal, Key: "gpa", Value: "raise to 3.5"}); err != nil {
			t.Fatalf("upsert for %s: %v", owner, err)
		}
		if _, err := s.InsertTurn(Turn{Owner: owner, Role: "user", Content: "hi"}); err != nil {
			t.Fatalf("turn for %s: %v", owner, err)
		}
		if err := s.UpsertMastery(Mastery{Owner: owner, Topic: "algebra", Level: 0.5}); err != nil {
			t.Fatalf("mastery for %s: %v", owner, err)
		}
	}

	if err := s.PurgeOwner("amal"); err != nil {
		t.Fatalf("purge: %v", err)
	}

	facts, _ := s.ListFacts("amal", 10)
	if len(facts) != 0 {
		t.Errorf("amal still has %d facts after purge", len(facts))
	}
	turns, _ := s.RecentTurns("amal", 10)
	if len(turns) != 0 {
		t.Errorf("amal still has %d turns after purge", len(turns))
	}

	facts, _ = s.ListFacts("bea", 10)
	if len(facts) != 1 {
		t.Errorf("purge must not touch other owners, bea has %d facts", len(facts))
	}
}
