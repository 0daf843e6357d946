package config

import (
	"testing"
	"time"
)

func TestDefaultGlobal(t *testing.T) {
	cfg := DefaultGlobal()

	if cfg.Retrieval.FusionK != 60 {
		t.Errorf("expected fusion_k 60, got %d", cfg.Retrieval.FusionK)
	}
	if cfg.Retrieval.MinChunks != 2 {
		t.Errorf("expected min_chunks 2, got %d", cfg.Retrieval.MinChunks)
	}
	if cfg.Retrieval.ScoreRatio != 0.6 {
		t.Errorf("expected score_ratio 0.6, got %v", cfg.Retrieval.ScoreRatio)
	}
	if cfg.Memory.ShortTermSize != 30 {
		t.Errorf("expected short_term_size 30, got %d", cfg.Memory.ShortTermSize)
	}
	if cfg.Memory.ShortTermTTL.Duration != 6*time.Hour {
		t.Errorf("expected short_term_ttl 6h, got %v", cfg.Memory.ShortTermTTL.Duration)
	}
	if cfg.Context.MaxTokens != 2000 {
		t.Errorf("expected max_tokens 2000, got %d", cfg.Context.MaxTokens)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("45m")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 45*time.Minute {
		t.Errorf("expected 45m, got %v", d.Duration)
	}

	if err := d.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestEffectiveDataDir(t *testing.T) {
	cfg := GlobalConfig{DataDir: "/tmp/lectern-test"}
	dir, err := cfg.EffectiveDataDir()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dir != "/tmp/lectern-test" {
		t.Errorf("expected explicit data dir, got %s", dir)
	}
}
