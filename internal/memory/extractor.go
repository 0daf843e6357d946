package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lectern/lectern/internal/adapter"
)

// extractCandidate is the JSON shape returned by the extraction prompt.
type extractCandidate struct {
	Kind  string `json:"kind"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExtractFacts asks the LLM to pull durable facts about the student out
// of one exchange. Returns up to maxExtracts Fact values without IDs;
// callers persist them via Store.UpsertFact.
func ExtractFacts(ctx context.Context, llm adapter.LLMAdapter, owner, userMsg, assistantMsg string, maxExtracts int) ([]Fact, error) {
	if maxExtracts <= 0 {
		maxExtracts = 3
	}

	exchange := fmt.Sprintf("Student: %s\n\nAssistant: %s",
		trimText(userMsg, 1500), trimText(assistantMsg, 2000))

	prompt := fmt.Sprintf(`From the exchange below, extract durable facts about the student worth remembering across sessions.

Return ONLY a compact JSON array. Each element: {"kind": "preference|fact|goal|struggle|insight|exam", "key": "short-stable-key", "value": "the fact"}.
- preference: how they like to study or be taught
- fact: stable personal or academic facts (major, courses, schedule)
- goal: something they are working toward
- struggle: a topic or concept they find hard
- insight: something that clicked for them
- exam: an upcoming test or deadline

Keys must be short stable identifiers (e.g. "study-time", "major", "exam-bio-midterm") so repeated mentions overwrite rather than accumulate.
If nothing qualifies, return []. No prose, no markdown, only the JSON array.
Maximum %d items.

--- EXCHANGE ---
%s
--- END ---`, maxExtracts, exchange)

	stream, err := llm.Complete(ctx, adapter.CompletionRequest{
		UserMessage: prompt,
		MaxTokens:   512,
		Temperature: 0.1,
		Stream:      false,
	})
	if err != nil {
		return nil, err
	}

	raw, err := adapter.Collect(stream)
	if err != nil {
		return nil, err
	}

	return parseExtractionJSON(raw, owner, maxExtracts)
}

// parseExtractionJSON extracts Fact values from the LLM's JSON output.
// Lenient: searches for the first '[' and last ']' to handle models that
// wrap the array in extra prose or markdown fences.
func parseExtractionJSON(raw, owner string, max int) ([]Fact, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end <= start {
		return nil, nil // nothing extractable, not an error
	}

	slice := raw[start : end+1]

	// Some small models emit `["kind": ...` (missing `{` on the first
	// element). Normalise by inserting `{` when the array begins directly
	// with a quoted key rather than a `{`.
	if len(slice) > 1 && slice[1] == '"' {
		slice = "[{" + slice[1:]
	}

	var candidates []extractCandidate
	if err := json.Unmarshal([]byte(slice), &candidates); err != nil {
		return nil, nil // still malformed, degrade gracefully
	}

	var out []Fact
	for _, c := range candidates {
		if len(out) >= max {
			break
		}
		key := strings.TrimSpace(strings.ToLower(c.Key))
		value := strings.TrimSpace(c.Value)
		if key == "" || value == "" {
			continue
		}
		kind := FactKind(strings.ToLower(strings.TrimSpace(c.Kind)))
		if !ValidFactKind(kind) {
			kind = KindFact
		}
		out = append(out, Fact{
			Owner: owner,
			Kind:  kind,
			Key:   key,
			Value: value,
		})
	}
	return out, nil
}

// trimText caps s at approximately maxChars characters, trimming at a
// sentence boundary if possible.
func trimText(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	trimmed := s[:maxChars]
	if idx := strings.LastIndexAny(trimmed, ".!?\n"); idx > maxChars/2 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + " [...]"
}
