// Package config manages the global (~/.config/lectern/config.toml)
// configuration for Lectern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// GlobalConfig holds user-wide settings.
type GlobalConfig struct {
	DefaultModel    string          `toml:"default_model"`
	DefaultEmbedder string          `toml:"default_embedder"`
	DataDir         string          `toml:"data_dir"`
	Keys            KeysConfig      `toml:"keys"`
	Ollama          OllamaConfig    `toml:"ollama"`
	Retrieval       RetrievalConfig `toml:"retrieval"`
	Memory          MemoryConfig    `toml:"memory"`
	Context         ContextConfig   `toml:"context"`
	Extraction      ExtractionConfig `toml:"extraction"`
	Generation      GenerationConfig `toml:"generation"`
	Jobs            JobsConfig      `toml:"jobs"`
}

type KeysConfig struct {
	Anthropic string `toml:"anthropic"`
	OpenAI    string `toml:"openai"`
	Gemini    string `toml:"gemini"`
}

type OllamaConfig struct {
	Host            string `toml:"host"`
	EmbedModel      string `toml:"embed_model"`
	CompletionModel string `toml:"completion_model"`
}

// RetrievalConfig holds the hybrid-search and confidence-gate tunables.
// FusionK is the reciprocal-rank-fusion constant; changing it changes the
// ranking contract, so it lives in config rather than code.
type RetrievalConfig struct {
	TopK            int     `toml:"top_k"`
	FusionK         int     `toml:"fusion_k"`
	Overfetch       int     `toml:"overfetch"`
	MinChunks       int     `toml:"min_chunks"`
	ScoreRatio      float64 `toml:"score_ratio"`
	ScoreFloor      float64 `toml:"score_floor"`
	MinFiltered     int     `toml:"min_filtered"`
	EmbeddingModel  string  `toml:"embedding_model"`
}

// MemoryConfig controls the layered conversational memory.
type MemoryConfig struct {
	ShortTermSize    int           `toml:"short_term_size"`
	ShortTermTTL     duration      `toml:"short_term_ttl"`
	DeepRecallOn     bool          `toml:"deep_recall"`
	DeepRecallMinLen int           `toml:"deep_recall_min_len"`
	DeepRecallCap    int           `toml:"deep_recall_cap"`
	ProfileCacheTTL  duration      `toml:"profile_cache_ttl"`
	WeakMasteryLevel float64       `toml:"weak_mastery_level"`
}

// ContextConfig holds per-section token budgets for context assembly.
type ContextConfig struct {
	MaxTokens        int `toml:"max_tokens"`
	ProfileBudget    int `toml:"profile_budget"`
	FactsBudget      int `toml:"facts_budget"`
	TurnsBudget      int `toml:"turns_budget"`
	RecallBudget     int `toml:"recall_budget"`
	TopKFacts        int `toml:"top_k_facts"`
}

// ExtractionConfig controls async fact extraction from conversation turns.
type ExtractionConfig struct {
	Enabled     bool     `toml:"enabled"`
	MaxExtracts int      `toml:"max_extracts"`
	MinTurnLen  int      `toml:"min_turn_len"`
	Timeout     duration `toml:"timeout"`
}

// GenerationConfig bounds the external generation call.
type GenerationConfig struct {
	MaxTokens   int      `toml:"max_tokens"`
	Temperature float64  `toml:"temperature"`
	Timeout     duration `toml:"timeout"`
}

// JobsConfig holds cron specs for the background jobs run in watch mode.
type JobsConfig struct {
	SweepSpec   string   `toml:"sweep_spec"`
	RebuildSpec string   `toml:"rebuild_spec"`
	DebounceMs  int      `toml:"debounce_ms"`
}

// duration is a TOML-friendly wrapper around time.Duration ("30m", "72h").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultGlobal returns sensible defaults.
func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		DefaultModel:    "claude",
		DefaultEmbedder: "ollama",
		Ollama: OllamaConfig{
			Host:            "http://localhost:11434",
			EmbedModel:      "nomic-embed-text",
			CompletionModel: "llama3.2",
		},
		Retrieval: RetrievalConfig{
			TopK:           6,
			FusionK:        60,
			Overfetch:      3,
			MinChunks:      2,
			ScoreRatio:     0.6,
			ScoreFloor:     0.008,
			MinFiltered:    2,
			EmbeddingModel: "nomic-embed-text",
		},
		Memory: MemoryConfig{
			ShortTermSize:    30,
			ShortTermTTL:     duration{6 * time.Hour},
			DeepRecallOn:     true,
			DeepRecallMinLen: 12,
			DeepRecallCap:    8,
			ProfileCacheTTL:  duration{5 * time.Minute},
			WeakMasteryLevel: 0.4,
		},
		Context: ContextConfig{
			MaxTokens:     2000,
			ProfileBudget: 500,
			FactsBudget:   400,
			TurnsBudget:   300,
			RecallBudget:  300,
			TopKFacts:     10,
		},
		Extraction: ExtractionConfig{
			Enabled:     true,
			MaxExtracts: 3,
			MinTurnLen:  50,
			Timeout:     duration{30 * time.Second},
		},
		Generation: GenerationConfig{
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     duration{90 * time.Second},
		},
		Jobs: JobsConfig{
			SweepSpec:   "*/30 * * * *",
			RebuildSpec: "*/10 * * * *",
			DebounceMs:  500,
		},
	}
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lectern", "config.toml"), nil
}

// LoadGlobal loads the global config, applying defaults for any missing values.
func LoadGlobal() (GlobalConfig, error) {
	cfg := DefaultGlobal()

	path, err := GlobalConfigPath()
	if err != nil {
		return cfg, nil // Return defaults if we can't determine home dir.
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // File doesn't exist yet, use defaults.
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: load global: %w", err)
	}

	// Let env vars override config file API keys.
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Keys.Anthropic = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Keys.Gemini = v
	}

	return cfg, nil
}

// SaveGlobal writes the global config to disk.
func SaveGlobal(cfg GlobalConfig) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create global config: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// EffectiveDataDir resolves the data directory, defaulting to ~/.lectern.
func (c GlobalConfig) EffectiveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve data dir: %w", err)
	}
	return filepath.Join(home, ".lectern"), nil
}

// DBPath returns the path of the durable memory database under dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "memory.db")
}

// IndexPath returns the path of the persisted search index under dataDir.
func IndexPath(dataDir string) string {
	return filepath.Join(dataDir, "index.json")
}

// ProfileDir returns the directory holding per-owner profile files.
func ProfileDir(dataDir string) string {
	return filepath.Join(dataDir, "profiles")
}
