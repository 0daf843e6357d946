package memory

import (
	"testing"
	"time"
)

func TestWindowBounded(t *testing.T) {
	w := NewWindow(3, time.Hour)
	for _, msg := range []string{"one", "two", "three", "four"} {
		w.Append("amal", "user", msg)
	}

	turns := w.Recent("amal")
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "two" || turns[2].Content != "four" {
		t.Errorf("oldest turn must be evicted: %+v", turns)
	}
}

func TestWindowTTLEviction(t *testing.T) {
	w := NewWindow(10, time.Hour)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	w.Append("amal", "user", "old question")

	w.now = func() time.Time { return base.Add(30 * time.Minute) }
	w.Append("amal", "assistant", "old answer")

	// Two hours later only fresh turns survive.
	w.now = func() time.Time { return base.Add(2 * time.Hour) }
	w.Append("amal", "user", "new question")

	turns := w.Recent("amal")
	if len(turns) != 1 {
		t.Fatalf("expected 1 live turn, got %d", len(turns))
	}
	if turns[0].Content != "new question" {
		t.Errorf("wrong survivor: %q", turns[0].Content)
	}
}

func TestWindowPerOwner(t *testing.T) {
	w := NewWindow(5, time.Hour)
	w.Append("amal", "user", "biology question")
	w.Append("jesse", "user", "history question")

	if got := w.Recent("amal"); len(got) != 1 || got[0].Content != "biology question" {
		t.Errorf("amal window wrong: %+v", got)
	}
	if got := w.Recent("jesse"); len(got) != 1 || got[0].Content != "history question" {
		t.Errorf("jesse window wrong: %+v", got)
	}
}

func TestWindowClear(t *testing.T) {
	w := NewWindow(5, time.Hour)
	w.Append("amal", "user", "something")
	w.Clear("amal")
	if got := w.Recent("amal"); len(got) != 0 {
		t.Errorf("clear left turns behind: %+v", got)
	}
}
