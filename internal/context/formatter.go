package context

import (
	"fmt"
	"strings"

	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/memory"
)

// Formatter renders memory and retrieval sections into prompt-ready
// strings.
type Formatter struct{}

// NewFormatter creates a Formatter.
func NewFormatter() *Formatter { return &Formatter{} }

// FormatProfile renders the static student profile block.
func (f *Formatter) FormatProfile(text string) string {
	if text == "" {
		return ""
	}
	return "## Student Profile\n\n" + text + "\n"
}

// FormatFacts renders extracted facts as a markdown list grouped by kind.
func (f *Formatter) FormatFacts(facts []memory.Fact) string {
	if len(facts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## What I Know About This Student\n\n")
	for _, fact := range facts {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", fact.Kind, fact.Key, fact.Value)
	}
	return b.String()
}

// FormatWeakTopics renders topics the student has not yet mastered.
func (f *Formatter) FormatWeakTopics(topics []memory.Mastery) string {
	if len(topics) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Topics The Student Finds Difficult\n\n")
	for _, t := range topics {
		fmt.Fprintf(&b, "- %s (mastery %.0f%%)\n", t.Topic, t.Level*100)
	}
	return b.String()
}

// FormatRecall renders deep-recall snippets from past conversations.
func (f *Formatter) FormatRecall(turns []memory.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## From Earlier Conversations\n\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "- (%s, %s) %s\n", t.Role, t.CreatedAt.Format("Jan 2"), truncateStr(t.Content, 200))
	}
	return b.String()
}

// FormatChunks renders retrieved course material with source labels.
func (f *Formatter) FormatChunks(results []index.Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Course Material\n\n")
	for _, r := range results {
		label := r.Chunk.SourceID
		if r.Chunk.Course != "" {
			label = r.Chunk.Course + " / " + r.Chunk.SourceID
		}
		fmt.Fprintf(&b, "### %s\n%s\n\n", label, r.Chunk.Text)
	}
	return b.String()
}

// FormatSourceList renders the available sources for a guide answer.
func (f *Formatter) FormatSourceList(stats []index.SourceStat) string {
	if len(stats) == 0 {
		return "No course material has been ingested yet."
	}
	var b strings.Builder
	b.WriteString("Available material:\n")
	for _, st := range stats {
		if st.Course != "" {
			fmt.Fprintf(&b, "- %s (%s, %d passages)\n", st.SourceID, st.Course, st.Chunks)
		} else {
			fmt.Fprintf(&b, "- %s (%d passages)\n", st.SourceID, st.Chunks)
		}
	}
	return b.String()
}

func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
