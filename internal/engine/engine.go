// Package engine orchestrates a question end to end: hybrid retrieval,
// the confidence gate, memory context assembly, generation, and the
// memory commit that follows a successful answer.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lectern/lectern/internal/adapter"
	appctx "github.com/lectern/lectern/internal/context"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/memory"
)

// fallbackText is returned when generation fails or times out. It is
// deliberately distinct from a guide answer: the material was there, the
// model was not.
const fallbackText = "I found relevant material for your question, but I couldn't generate an answer right now. Please try again in a moment."

// Options bundles the engine tunables.
type Options struct {
	Gate        index.GateConfig
	Build       appctx.BuildOptions
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultOptions mirrors the shipped config defaults.
func DefaultOptions() Options {
	return Options{
		Gate:        index.GateConfig{Ratio: 0.6, Floor: 0.008, MinChunks: 2},
		Build:       appctx.BuildOptions{},
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     90 * time.Second,
	}
}

// SearchResult pairs retrieval hits with the gate's verdict.
type SearchResult struct {
	Results   []index.Result
	Decision  index.GateDecision
	Degraded  bool
	Broadened bool
}

// Answer is the outcome of one question.
type Answer struct {
	Text       string
	Mode       index.Mode
	Decision   index.GateDecision
	Results    []index.Result
	Degraded   bool
	Broadened  bool
	Fallback   bool // generation failed; Text is the safe fallback
	TokensUsed int
	Sections   []string
}

// Engine wires the retrieval store, memory manager, context builder, and
// LLM adapter into the ask flow. Safe for concurrent use; turns of the
// same owner are serialized, different owners are not.
type Engine struct {
	store     *index.Store
	mem       *memory.Manager
	builder   *appctx.Builder
	formatter *appctx.Formatter
	tokenizer *appctx.Tokenizer
	llm       adapter.LLMAdapter
	opts      Options
	logger    *zap.Logger

	ownerMu sync.Mutex
	owners  map[string]*sync.Mutex

	seenMu sync.Mutex
	seen   map[string]map[string]struct{} // owner -> chunk ids already shown
}

// New creates an Engine.
func New(store *index.Store, mem *memory.Manager, builder *appctx.Builder, formatter *appctx.Formatter, tokenizer *appctx.Tokenizer, llm adapter.LLMAdapter, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		mem:       mem,
		builder:   builder,
		formatter: formatter,
		tokenizer: tokenizer,
		llm:       llm,
		opts:      opts,
		logger:    logger,
		owners:    make(map[string]*sync.Mutex),
		seen:      make(map[string]map[string]struct{}),
	}
}

// ownerLock returns the mutex serializing one owner's turns.
func (e *Engine) ownerLock(owner string) *sync.Mutex {
	e.ownerMu.Lock()
	defer e.ownerMu.Unlock()
	mu, ok := e.owners[owner]
	if !ok {
		mu = &sync.Mutex{}
		e.owners[owner] = mu
	}
	return mu
}

// Search runs retrieval and the gate without generating anything.
func (e *Engine) Search(ctx context.Context, query string, opts index.QueryOptions) (SearchResult, error) {
	res, err := e.store.Query(ctx, query, opts)
	if err != nil {
		return SearchResult{}, fmt.Errorf("engine: search: %w", err)
	}
	return SearchResult{
		Results:   res.Results,
		Decision:  index.Decide(res.Scores(), e.opts.Gate),
		Degraded:  res.Degraded,
		Broadened: res.Broadened,
	}, nil
}

// AskOptions shapes one Ask call.
type AskOptions struct {
	Course   string
	Continue bool // exclude chunks already shown to this owner
	Stream   func(text string) // called per chunk when set; Answer.Text still accumulates
}

// Ask answers one question for an owner. Memory is committed only after
// a successful generation; a failed or timed-out generation returns the
// fallback text and leaves every memory layer untouched.
func (e *Engine) Ask(ctx context.Context, owner, question string, opts AskOptions) (Answer, error) {
	mu := e.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()

	qopts := index.QueryOptions{Course: opts.Course}
	if opts.Continue {
		qopts.Exclude = e.seenSet(owner)
	}

	retrieval, err := e.store.Query(ctx, question, qopts)
	if err != nil {
		return Answer{}, fmt.Errorf("engine: ask: %w", err)
	}

	decision := index.Decide(retrieval.Scores(), e.opts.Gate)
	ans := Answer{
		Mode:      decision.Mode,
		Decision:  decision,
		Results:   retrieval.Results,
		Degraded:  retrieval.Degraded,
		Broadened: retrieval.Broadened,
	}

	if decision.Mode == index.ModeGuide {
		ans.Text = e.guideText(opts.Course, question)
		e.commit(ctx, owner, question, ans, "guide")
		return ans, nil
	}

	built := e.builder.Build(ctx, owner, question, e.opts.Build)
	ans.Sections = built.Sections

	text, err := e.generate(ctx, question, built, retrieval.Results, opts.Stream)
	if err != nil {
		e.logger.Warn("generation failed, serving fallback",
			zap.String("owner", owner), zap.Error(err))
		ans.Text = fallbackText
		ans.Fallback = true
		return ans, nil
	}

	ans.Text = text
	ans.TokensUsed = built.TokensUsed + e.tokenizer.Count(text)
	e.markSeen(owner, retrieval.Results)
	e.commit(ctx, owner, question, ans, "teach")
	return ans, nil
}

// generate calls the model under the configured timeout.
func (e *Engine) generate(ctx context.Context, question string, built *appctx.BuiltContext, results []index.Result, stream func(string)) (string, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	contextText := built.MemoryText
	material := e.formatter.FormatChunks(results)
	if material != "" {
		if contextText != "" {
			contextText += "\n"
		}
		contextText += material
	}

	ch, err := e.llm.Complete(ctx, adapter.CompletionRequest{
		SystemPrompt: systemPrompt,
		Context:      contextText,
		History:      built.History,
		UserMessage:  question,
		Model:        e.opts.Model,
		MaxTokens:    e.opts.MaxTokens,
		Temperature:  e.opts.Temperature,
		Stream:       stream != nil,
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range ch {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		sb.WriteString(chunk.Text)
		if stream != nil {
			stream(chunk.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("engine: empty completion")
	}
	return sb.String(), nil
}

// guideText composes the guide answer: what material exists, so the
// student can ingest more or redirect the question.
func (e *Engine) guideText(course, question string) string {
	var b strings.Builder
	b.WriteString("I don't have enough course material to answer that confidently.\n\n")
	if course != "" {
		b.WriteString(e.formatter.FormatSourceList(e.store.SourcesForCourse(course)))
	} else {
		b.WriteString(e.formatter.FormatSourceList(e.store.Stats()))
	}
	b.WriteString("\nIngest more material with `lectern ingest`, or ask about one of the sources above.")
	return b.String()
}

// commit records the exchange and session after a successful answer.
// Bookkeeping failures are logged, never returned: the answer already
// happened.
func (e *Engine) commit(ctx context.Context, owner, question string, ans Answer, mode string) {
	if err := e.mem.RecordExchange(ctx, owner, question, ans.Text); err != nil {
		e.logger.Warn("memory commit failed", zap.String("owner", owner), zap.Error(err))
	}
	model := e.opts.Model
	if model == "" && e.llm != nil {
		model = e.llm.Info().Name
	}
	if err := e.mem.Store().RecordSession(memory.Session{
		Owner:      owner,
		Question:   question,
		Mode:       mode,
		ModelUsed:  model,
		TokensUsed: ans.TokensUsed,
	}); err != nil {
		e.logger.Warn("session bookkeeping failed", zap.Error(err))
	}
}

// seenSet returns a copy of the owner's already-shown chunk ids.
func (e *Engine) seenSet(owner string) map[string]struct{} {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	out := make(map[string]struct{}, len(e.seen[owner]))
	for id := range e.seen[owner] {
		out[id] = struct{}{}
	}
	return out
}

// markSeen remembers which chunks the owner has been shown, so a
// follow-up "continue" surfaces fresh material.
func (e *Engine) markSeen(owner string, results []index.Result) {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	set, ok := e.seen[owner]
	if !ok {
		set = make(map[string]struct{})
		e.seen[owner] = set
	}
	for _, r := range results {
		set[r.Chunk.ID] = struct{}{}
	}
}

const systemPrompt = `You are Lectern, a personal study assistant. Answer using the course material in the context. Ground every claim in that material; if the material only partially covers the question, say which part is uncovered. Adapt explanations to the student profile and their known struggles. Be concise and concrete.`
