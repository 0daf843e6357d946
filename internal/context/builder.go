package context

import (
	"context"

	"github.com/lectern/lectern/internal/adapter"
	"github.com/lectern/lectern/internal/memory"
)

// BuildOptions holds the per-section token budgets. Sections are added in
// priority order (profile, facts, weak topics, recall); whatever exceeds
// its budget or the remaining total is truncated or dropped, lowest
// priority first. Recent turns are budgeted separately because they
// travel as chat history rather than context text.
type BuildOptions struct {
	MaxTokens     int
	ProfileBudget int
	FactsBudget   int
	TurnsBudget   int
	RecallBudget  int
	TopKFacts     int
}

// BuiltContext is the result of a context build.
type BuiltContext struct {
	MemoryText string
	History    []adapter.Turn
	TokensUsed int
	// Sections lists what was included, for --verbose output.
	Sections []string
}

// Builder assembles the memory side of a prompt within a token budget.
type Builder struct {
	manager   *memory.Manager
	formatter *Formatter
	tokenizer *Tokenizer
}

// NewBuilder creates a Builder.
func NewBuilder(manager *memory.Manager, formatter *Formatter, tokenizer *Tokenizer) *Builder {
	return &Builder{manager: manager, formatter: formatter, tokenizer: tokenizer}
}

// Build assembles the memory context for one question. Every layer is
// best-effort: a layer that fails or is empty loses its section and
// nothing more.
func (b *Builder) Build(ctx context.Context, owner, question string, opts BuildOptions) *BuiltContext {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2000
	}
	if opts.ProfileBudget == 0 {
		opts.ProfileBudget = 500
	}
	if opts.FactsBudget == 0 {
		opts.FactsBudget = 400
	}
	if opts.TurnsBudget == 0 {
		opts.TurnsBudget = 300
	}
	if opts.RecallBudget == 0 {
		opts.RecallBudget = 300
	}
	if opts.TopKFacts == 0 {
		opts.TopKFacts = 10
	}

	remaining := opts.MaxTokens
	var sections []string
	var labels []string

	add := func(label, block string, budget int) {
		if block == "" || remaining <= 0 {
			return
		}
		if budget > remaining {
			budget = remaining
		}
		if b.tokenizer.Count(block) > budget {
			block = b.tokenizer.Truncate(block, budget)
		}
		tokens := b.tokenizer.Count(block)
		sections = append(sections, block)
		labels = append(labels, label)
		remaining -= tokens
	}

	add("profile", b.formatter.FormatProfile(b.manager.Profile(owner)), opts.ProfileBudget)
	add("facts", b.formatter.FormatFacts(b.manager.RelevantFacts(ctx, owner, question, opts.TopKFacts)), opts.FactsBudget)
	add("weak-topics", b.formatter.FormatWeakTopics(b.manager.WeakTopics(owner, 5)), opts.FactsBudget)
	add("recall", b.formatter.FormatRecall(b.manager.Recall(owner, question)), opts.RecallBudget)

	history := b.trimHistory(b.manager.Recent(owner), opts.TurnsBudget)
	if len(history) > 0 {
		labels = append(labels, "recent-turns")
	}

	text := ""
	for i, s := range sections {
		if i > 0 {
			text += "\n"
		}
		text += s
	}

	return &BuiltContext{
		MemoryText: text,
		History:    history,
		TokensUsed: opts.MaxTokens - remaining,
		Sections:   labels,
	}
}

// trimHistory keeps the newest turns that fit the budget, preserving
// oldest-first order for the adapter.
func (b *Builder) trimHistory(turns []memory.Turn, budget int) []adapter.Turn {
	used := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		tokens := b.tokenizer.Count(turns[i].Content)
		if used+tokens > budget {
			break
		}
		used += tokens
		start = i
	}

	out := make([]adapter.Turn, 0, len(turns)-start)
	for _, t := range turns[start:] {
		out = append(out, adapter.Turn{Role: t.Role, Content: t.Content})
	}
	return out
}
