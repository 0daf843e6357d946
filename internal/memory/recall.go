package memory

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// recall settings. Keywords shorter than three runes carry no signal, and
// more than five makes the LIKE scan indiscriminate.
const (
	minKeywordRunes = 3
	maxKeywords     = 5
)

// recallStopwords excludes filler from keyword extraction.
var recallStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "how": {}, "why": {},
	"who": {}, "can": {}, "could": {}, "would": {}, "should": {}, "does": {},
	"about": {}, "from": {}, "have": {}, "has": {}, "was": {}, "were": {},
	"are": {}, "you": {}, "your": {}, "please": {}, "tell": {}, "explain": {},
	"help": {}, "need": {}, "want": {}, "know": {}, "like": {}, "just": {},
	"did": {}, "not": {}, "but": {}, "all": {}, "more": {}, "some": {},
}

// ExtractKeywords pulls up to maxKeywords content words out of a query
// for deep recall. Order of first appearance is preserved.
func ExtractKeywords(query string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range strings.Fields(strings.ToLower(query)) {
		word := strings.Trim(raw, ".,;:!?\"'()[]")
		if utf8.RuneCountInString(word) < minKeywordRunes {
			continue
		}
		if _, stop := recallStopwords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}

// DeepRecall searches the owner's archived turns for keyword matches.
// Queries shorter than minQueryLen are skipped: recall on tiny queries
// surfaces noise. Results are newest first, capped at max.
func (s *Store) DeepRecall(owner, query string, minQueryLen, max int) ([]Turn, error) {
	if len(query) < minQueryLen {
		return nil, nil
	}
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}
	if max <= 0 {
		max = 8
	}

	var conds []string
	var args []any
	args = append(args, owner)
	for _, kw := range keywords {
		conds = append(conds, "content LIKE ?")
		args = append(args, "%"+kw+"%")
	}
	args = append(args, max)

	query = fmt.Sprintf(`
		SELECT seq, owner, role, content, created_at
		FROM turns
		WHERE owner = ? AND (%s)
		ORDER BY seq DESC LIMIT ?`,
		strings.Join(conds, " OR "))

	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: deep recall: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}
