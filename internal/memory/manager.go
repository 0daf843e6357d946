package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lectern/lectern/internal/adapter"
)

// ManagerOptions bundles the memory tunables.
type ManagerOptions struct {
	WindowSize       int
	WindowTTL        time.Duration
	ExtractionOn     bool
	ExtractTimeout   time.Duration
	MaxExtracts      int
	MinTurnLen       int
	DeepRecallOn     bool
	DeepRecallMinLen int
	DeepRecallCap    int
	WeakMasteryLevel float64
}

// DefaultManagerOptions mirrors the shipped config defaults.
func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		WindowSize:       30,
		WindowTTL:        6 * time.Hour,
		ExtractionOn:     true,
		ExtractTimeout:   30 * time.Second,
		MaxExtracts:      3,
		MinTurnLen:       50,
		DeepRecallOn:     true,
		DeepRecallMinLen: 12,
		DeepRecallCap:    8,
		WeakMasteryLevel: 0.4,
	}
}

// Manager coordinates the three memory layers for the engine: the
// in-process window, the durable fact store, and keyword deep recall.
type Manager struct {
	window   *Window
	store    *Store
	profiles *Profiles
	llm      adapter.LLMAdapter
	embedder adapter.Embedder
	opts     ManagerOptions
	logger   *zap.Logger

	extractions sync.WaitGroup
}

// NewManager wires the memory layers together. llm may be nil to disable
// extraction; embedder may be nil to disable fact-relevance search.
func NewManager(store *Store, profiles *Profiles, llm adapter.LLMAdapter, embedder adapter.Embedder, opts ManagerOptions, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		window:   NewWindow(opts.WindowSize, opts.WindowTTL),
		store:    store,
		profiles: profiles,
		llm:      llm,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// Store exposes the underlying fact store.
func (m *Manager) Store() *Store { return m.store }

// Profiles exposes the static profile loader.
func (m *Manager) Profiles() *Profiles { return m.profiles }

// RecordExchange commits one completed exchange to every layer: the
// window, the turn archive, and (when the exchange is substantial) the
// extracted fact store. Callers invoke this only after a successful
// generation, so a failed answer leaves no memory trace. Extraction is
// triggered, never waited on: it runs in the background under its own
// timeout so a slow extraction backend cannot stall the turn.
func (m *Manager) RecordExchange(_ context.Context, owner, userMsg, assistantMsg string) error {
	m.window.Append(owner, "user", userMsg)
	m.window.Append(owner, "assistant", assistantMsg)

	if _, err := m.store.InsertTurn(Turn{Owner: owner, Role: "user", Content: userMsg}); err != nil {
		return err
	}
	if _, err := m.store.InsertTurn(Turn{Owner: owner, Role: "assistant", Content: assistantMsg}); err != nil {
		return err
	}

	if m.opts.ExtractionOn && m.llm != nil && len(userMsg)+len(assistantMsg) >= m.opts.MinTurnLen {
		timeout := m.opts.ExtractTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		m.extractions.Add(1)
		go func() {
			defer m.extractions.Done()
			// Detached from the turn's context: the turn is already
			// answered and must not be able to cancel the enrichment.
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			m.extractAndPersist(ctx, owner, userMsg, assistantMsg)
		}()
	}
	return nil
}

// Wait blocks until all in-flight extractions have finished. Called
// before process exit so background enrichment is not lost.
func (m *Manager) Wait() {
	m.extractions.Wait()
}

// extractAndPersist runs fact extraction and stores whatever comes back.
// Extraction failures are logged, never surfaced: memory enrichment must
// not break the answer path.
func (m *Manager) extractAndPersist(ctx context.Context, owner, userMsg, assistantMsg string) {
	facts, err := ExtractFacts(ctx, m.llm, owner, userMsg, assistantMsg, m.opts.MaxExtracts)
	if err != nil {
		m.logger.Warn("fact extraction failed", zap.Error(err))
		return
	}
	for _, f := range facts {
		id, err := m.store.UpsertFact(f)
		if err != nil {
			m.logger.Warn("fact upsert failed", zap.String("key", f.Key), zap.Error(err))
			continue
		}
		if m.embedder != nil {
			if vecs, err := m.embedder.Embed(ctx, []string{f.Value}); err == nil && len(vecs) == 1 {
				if err := m.store.UpsertFactVector(id, vecs[0]); err != nil {
					m.logger.Debug("fact vector upsert failed", zap.Error(err))
				}
			}
		}
	}
	if len(facts) > 0 {
		m.logger.Info("extracted facts", zap.String("owner", owner), zap.Int("count", len(facts)))
	}
}

// Recent returns the owner's short-term window. A fresh process has an
// empty window, so it falls back to the newest archived turns inside the
// TTL, which gives the CLI continuity across invocations.
func (m *Manager) Recent(owner string) []Turn {
	if turns := m.window.Recent(owner); len(turns) > 0 {
		return turns
	}

	archived, err := m.store.RecentTurns(owner, m.opts.WindowSize)
	if err != nil {
		m.logger.Warn("recent turns unavailable", zap.Error(err))
		return nil
	}
	cutoff := time.Now().Add(-m.opts.WindowTTL)
	live := archived[:0]
	for _, t := range archived {
		if t.CreatedAt.After(cutoff) {
			live = append(live, t)
		}
	}
	return live
}

// Recall searches the turn archive for keyword matches to the query.
func (m *Manager) Recall(owner, query string) []Turn {
	if !m.opts.DeepRecallOn {
		return nil
	}
	turns, err := m.store.DeepRecall(owner, query, m.opts.DeepRecallMinLen, m.opts.DeepRecallCap)
	if err != nil {
		m.logger.Warn("deep recall failed", zap.Error(err))
		return nil
	}
	return turns
}

// RelevantFacts returns facts ranked by vector relevance to the query,
// degrading to recency order when embedding or vec search is unavailable.
func (m *Manager) RelevantFacts(ctx context.Context, owner, query string, limit int) []Fact {
	if m.embedder != nil {
		if vecs, err := m.embedder.Embed(ctx, []string{query}); err == nil && len(vecs) == 1 {
			if facts, err := m.store.RelevantFacts(vecs[0], owner, limit); err == nil && len(facts) > 0 {
				return facts
			}
		}
	}

	facts, err := m.store.ListFacts(owner, limit)
	if err != nil {
		m.logger.Warn("fact listing failed", zap.Error(err))
		return nil
	}
	return facts
}

// WeakTopics lists topics below the configured mastery threshold.
func (m *Manager) WeakTopics(owner string, limit int) []Mastery {
	topics, err := m.store.WeakTopics(owner, m.opts.WeakMasteryLevel, limit)
	if err != nil {
		m.logger.Warn("weak topics unavailable", zap.Error(err))
		return nil
	}
	return topics
}

// Purge wipes every memory layer for an owner: the in-process window,
// the durable store, and the cached profile.
func (m *Manager) Purge(owner string) error {
	m.window.Clear(owner)
	if m.profiles != nil {
		m.profiles.Invalidate(owner)
	}
	return m.store.PurgeOwner(owner)
}

// Profile returns the owner's static profile text, or "" on any failure:
// a broken profile file costs its context section, nothing else.
func (m *Manager) Profile(owner string) string {
	if m.profiles == nil {
		return ""
	}
	text, err := m.profiles.Load(owner)
	if err != nil {
		m.logger.Warn("profile unavailable", zap.String("owner", owner), zap.Error(err))
		return ""
	}
	return text
}
