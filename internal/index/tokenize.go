package index

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

var wordRe = regexp.MustCompile(`\p{L}+`)

// stopwords excluded from the lexical index and from query terms.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"he": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "them": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "who": {}, "why": {}, "will": {}, "with": {},
	"you": {}, "your": {}, "how": {}, "can": {}, "do": {}, "does": {},
	"about": {}, "me": {}, "my": {}, "we": {}, "our": {}, "not": {},
	"i": {}, "am": {}, "if": {}, "so": {}, "than": {}, "then": {},
}

// Tokenize splits text into lowercase stemmed terms with stopwords removed.
// Stemming failures for exotic tokens fall back to the raw lowercase form.
func Tokenize(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if len(w) < 2 {
			continue
		}
		stemmed, err := snowball.Stem(w, "english", false)
		if err != nil || stemmed == "" {
			stemmed = w
		}
		terms = append(terms, stemmed)
	}
	return terms
}
