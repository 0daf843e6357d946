package cli

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lectern/lectern/internal/adapter"
	"github.com/lectern/lectern/internal/config"
	appctx "github.com/lectern/lectern/internal/context"
	"github.com/lectern/lectern/internal/db"
	"github.com/lectern/lectern/internal/engine"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/memory"
)

// defaultOwner is used when --user is not given.
const defaultOwner = "student"

// app bundles everything a command needs: config, database, retrieval
// store, memory manager, and context builder. Commands open it, use what
// they need, and Close it.
type app struct {
	cfg       config.GlobalConfig
	dataDir   string
	database  *db.DB
	index     *index.Store
	memStore  *memory.Store
	manager   *memory.Manager
	formatter *appctx.Formatter
	tokenizer *appctx.Tokenizer
	builder   *appctx.Builder
	logger    *zap.Logger
}

// openApp loads config, opens the database, and restores the persisted
// search index. The embedder and extraction model are best-effort: a
// missing provider degrades the relevant feature instead of failing the
// command.
func openApp() (*app, error) {
	cfg, err := config.LoadGlobal()
	if err != nil {
		return nil, err
	}

	dataDir, err := cfg.EffectiveDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logger := newLogger()

	database, err := db.Open(config.DBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	embedder := buildEmbedder(cfg)
	extractor := buildModel(cfg, "")

	memStore := memory.NewStore(database)
	profiles := memory.NewProfiles(config.ProfileDir(dataDir), cfg.Memory.ProfileCacheTTL.Duration)
	manager := memory.NewManager(memStore, profiles, extractor, embedder, memory.ManagerOptions{
		WindowSize:       cfg.Memory.ShortTermSize,
		WindowTTL:        cfg.Memory.ShortTermTTL.Duration,
		ExtractionOn:     cfg.Extraction.Enabled,
		ExtractTimeout:   cfg.Extraction.Timeout.Duration,
		MaxExtracts:      cfg.Extraction.MaxExtracts,
		MinTurnLen:       cfg.Extraction.MinTurnLen,
		DeepRecallOn:     cfg.Memory.DeepRecallOn,
		DeepRecallMinLen: cfg.Memory.DeepRecallMinLen,
		DeepRecallCap:    cfg.Memory.DeepRecallCap,
		WeakMasteryLevel: cfg.Memory.WeakMasteryLevel,
	}, logger)

	idx := index.NewStore(embedder, cfg.Retrieval.EmbeddingModel, index.Options{
		FusionK:     cfg.Retrieval.FusionK,
		Overfetch:   cfg.Retrieval.Overfetch,
		MinFiltered: cfg.Retrieval.MinFiltered,
		TopK:        cfg.Retrieval.TopK,
	}, logger)

	if _, err := idx.Load(config.IndexPath(dataDir)); err != nil {
		if errors.Is(err, index.ErrIndexUnavailable) {
			fmt.Fprintln(os.Stderr, "Warning: saved index is stale or from a different embedding model. Re-ingest your material.")
		} else {
			return nil, fmt.Errorf("load index: %w", err)
		}
	}

	tokenizer, err := appctx.NewTokenizer()
	if err != nil {
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	formatter := appctx.NewFormatter()

	return &app{
		cfg:       cfg,
		dataDir:   dataDir,
		database:  database,
		index:     idx,
		memStore:  memStore,
		manager:   manager,
		formatter: formatter,
		tokenizer: tokenizer,
		builder:   appctx.NewBuilder(manager, formatter, tokenizer),
		logger:    logger,
	}, nil
}

func (a *app) Close() {
	// Drain in-flight fact extractions before the database goes away.
	a.manager.Wait()
	_ = a.database.Close()
	_ = a.logger.Sync()
}

// saveIndex persists the retrieval store after a mutating command.
func (a *app) saveIndex() error {
	return a.index.Save(config.IndexPath(a.dataDir))
}

// buildOpts maps config budgets into context build options.
func (a *app) buildOpts() appctx.BuildOptions {
	return appctx.BuildOptions{
		MaxTokens:     a.cfg.Context.MaxTokens,
		ProfileBudget: a.cfg.Context.ProfileBudget,
		FactsBudget:   a.cfg.Context.FactsBudget,
		TurnsBudget:   a.cfg.Context.TurnsBudget,
		RecallBudget:  a.cfg.Context.RecallBudget,
		TopKFacts:     a.cfg.Context.TopKFacts,
	}
}

// newEngine builds the ask engine. llm may be nil for commands that never
// generate (search, mcp without ask).
func (a *app) newEngine(llm adapter.LLMAdapter, model string) *engine.Engine {
	return engine.New(a.index, a.manager, a.builder, a.formatter, a.tokenizer, llm, engine.Options{
		Gate: index.GateConfig{
			Ratio:     a.cfg.Retrieval.ScoreRatio,
			Floor:     a.cfg.Retrieval.ScoreFloor,
			MinChunks: a.cfg.Retrieval.MinChunks,
		},
		Build:       a.buildOpts(),
		Model:       model,
		MaxTokens:   a.cfg.Generation.MaxTokens,
		Temperature: a.cfg.Generation.Temperature,
		Timeout:     a.cfg.Generation.Timeout.Duration,
	}, a.logger)
}

// buildModel constructs the completion adapter, or nil if the provider
// cannot be built. override takes precedence over the configured default.
func buildModel(cfg config.GlobalConfig, override string) adapter.LLMAdapter {
	name := cfg.DefaultModel
	if override != "" {
		name = override
	}
	if name == "" {
		return nil
	}
	llm, err := adapter.New(name, "", apiKey(cfg, name), cfg.Ollama.Host)
	if err != nil {
		return nil
	}
	return llm
}

// buildEmbedder constructs the embedding adapter, or nil if the provider
// cannot be built.
func buildEmbedder(cfg config.GlobalConfig) adapter.Embedder {
	name := cfg.DefaultEmbedder
	if name == "" {
		name = adapter.ProviderOllama
	}
	emb, err := adapter.New(name, cfg.Ollama.EmbedModel, apiKey(cfg, name), cfg.Ollama.Host)
	if err != nil {
		return nil
	}
	return emb
}

// apiKey returns the configured key for the given provider.
func apiKey(cfg config.GlobalConfig, provider string) string {
	switch provider {
	case adapter.ProviderClaude:
		return cfg.Keys.Anthropic
	case adapter.ProviderOpenAI:
		return cfg.Keys.OpenAI
	case adapter.ProviderGemini:
		return cfg.Keys.Gemini
	default:
		return ""
	}
}

// newLogger builds the internal logger. User-facing output stays on plain
// fmt; zap carries diagnostics, surfaced with LECTERN_DEBUG=1.
func newLogger() *zap.Logger {
	if os.Getenv("LECTERN_DEBUG") == "" {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
