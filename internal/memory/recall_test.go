package memory

import (
	"reflect"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{"what did we say about the krebs cycle last week?", []string{"say", "krebs", "cycle", "last", "week"}},
		{"how can you help me?", nil},
		{"photosynthesis", []string{"photosynthesis"}},
		{"a an to", nil},
	}
	for _, c := range cases {
		got := ExtractKeywords(c.query)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("ExtractKeywords(%q) = %v, want %v", c.query, got, c.want)
		}
	}
}

func TestExtractKeywordsCapped(t *testing.T) {
	got := ExtractKeywords("mitochondria ribosomes chloroplasts vacuoles lysosomes nucleus cytoplasm")
	if len(got) != maxKeywords {
		t.Errorf("expected cap at %d keywords, got %d", maxKeywords, len(got))
	}
}

func TestDeepRecallMatches(t *testing.T) {
	s := setupTestDB(t)

	for _, content := range []string{
		"I keep mixing up mitosis and meiosis",
		"The powerhouse of the cell is the mitochondria",
		"Thanks, that helped a lot",
	} {
		if _, err := s.InsertTurn(Turn{Owner: "amal", Role: "user", Content: content}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	turns, err := s.DeepRecall("amal", "can you remind me about mitosis again", 12, 8)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 match, got %d", len(turns))
	}
	if turns[0].Content != "I keep mixing up mitosis and meiosis" {
		t.Errorf("wrong turn recalled: %q", turns[0].Content)
	}
}

func TestDeepRecallSkipsShortQueries(t *testing.T) {
	s := setupTestDB(t)
	if _, err := s.InsertTurn(Turn{Owner: "amal", Role: "user", Content: "mitosis notes"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	turns, err := s.DeepRecall("amal", "mitosis", 12, 8)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if turns != nil {
		t.Error("queries below the minimum length must skip recall")
	}
}

func TestDeepRecallScopedByOwner(t *testing.T) {
	s := setupTestDB(t)
	if _, err := s.InsertTurn(Turn{Owner: "jesse", Role: "user", Content: "mitosis is cell division"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	turns, err := s.DeepRecall("amal", "tell me about mitosis please", 12, 8)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(turns) != 0 {
		t.Error("recall must not cross owners")
	}
}
