package index

import "testing"

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Hello   World  ", "hello world"},
		{"Tabs\tand\nnewlines", "tabs and newlines"},
		{"MiXeD Case", "mixed case"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := NormalizeText(c.in); got != c.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("notes.txt", "the calvin cycle")
	b := Fingerprint("notes.txt", "the calvin cycle")
	if a != b {
		t.Error("same input must produce the same fingerprint")
	}

	if Fingerprint("other.txt", "the calvin cycle") == a {
		t.Error("different source must change the fingerprint")
	}
	if Fingerprint("notes.txt", "the krebs cycle") == a {
		t.Error("different text must change the fingerprint")
	}
}

func TestFingerprintWhitespaceInvariant(t *testing.T) {
	a := Fingerprint("s", NormalizeText("The  Calvin\tCycle"))
	b := Fingerprint("s", NormalizeText("the calvin cycle"))
	if a != b {
		t.Error("normalization should make whitespace and case irrelevant")
	}
}

func TestRawChunkValid(t *testing.T) {
	if (RawChunk{SourceID: "", Text: "x"}).Valid() {
		t.Error("empty source must be invalid")
	}
	if (RawChunk{SourceID: "s", Text: "   "}).Valid() {
		t.Error("blank text must be invalid")
	}
	if !(RawChunk{SourceID: "s", Text: "x"}).Valid() {
		t.Error("source and text present must be valid")
	}
}

func TestTokenizeStemsAndFilters(t *testing.T) {
	terms := Tokenize("The runners were running quickly through photosynthesis!")
	for _, term := range terms {
		if term == "the" || term == "were" {
			t.Errorf("stopword %q survived", term)
		}
	}

	// Both inflections should stem to the same term.
	set := map[string]int{}
	for _, term := range terms {
		set[term]++
	}
	if set["runner"] == 0 && set["run"] == 0 {
		t.Errorf("expected a stem of running/runners in %v", terms)
	}
}
