package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lectern/lectern/internal/adapter"
	appctx "github.com/lectern/lectern/internal/context"
	"github.com/lectern/lectern/internal/db"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/memory"
)

// fakeLLM returns a canned completion, or fails on demand.
type fakeLLM struct {
	reply string
	fail  bool
}

func (f *fakeLLM) Complete(_ context.Context, _ adapter.CompletionRequest) (<-chan adapter.StreamChunk, error) {
	ch := make(chan adapter.StreamChunk, 1)
	if f.fail {
		ch <- adapter.StreamChunk{Error: errors.New("fake: model unavailable")}
	} else {
		ch <- adapter.StreamChunk{Text: f.reply}
	}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 32)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(w))
			vec[h.Sum32()%32]++
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeLLM) Info() adapter.ModelInfo {
	return adapter.ModelInfo{Name: "fake-model", Provider: "fake"}
}

func setupEngine(t *testing.T, llm *fakeLLM, ingest bool) (*Engine, *memory.Store) {
	t.Helper()

	tokenizer, err := appctx.NewTokenizer()
	if err != nil {
		t.Skipf("tokenizer unavailable: %v", err)
	}

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := index.NewStore(llm, "fake-embed", index.DefaultOptions(), zap.NewNop())
	if ingest {
		_, err := store.Add(context.Background(), []index.RawChunk{
			{SourceID: "bio.txt", Course: "biology", Text: "Photosynthesis converts light energy into chemical energy in chloroplasts."},
			{SourceID: "bio.txt", Course: "biology", Text: "The light reactions of photosynthesis produce ATP and NADPH."},
			{SourceID: "bio.txt", Course: "biology", Text: "The Calvin cycle fixes carbon dioxide using ATP from photosynthesis."},
		})
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	memStore := memory.NewStore(database)
	opts := memory.DefaultManagerOptions()
	opts.ExtractionOn = false
	mgr := memory.NewManager(memStore, memory.NewProfiles(t.TempDir(), 0), nil, llm, opts, zap.NewNop())

	formatter := appctx.NewFormatter()
	builder := appctx.NewBuilder(mgr, formatter, tokenizer)

	eng := New(store, mgr, builder, formatter, tokenizer, llm, DefaultOptions(), zap.NewNop())
	return eng, memStore
}

func TestAskGuideOnEmptyIndex(t *testing.T) {
	llm := &fakeLLM{reply: "should not be called"}
	eng, memStore := setupEngine(t, llm, false)

	ans, err := eng.Ask(context.Background(), "amal", "what is photosynthesis and how does it work", AskOptions{})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Mode != index.ModeGuide {
		t.Fatalf("empty index must guide, got %s", ans.Mode)
	}
	if !strings.Contains(ans.Text, "No course material") {
		t.Errorf("guide text should list material state:\n%s", ans.Text)
	}

	// Guide answers still commit to memory.
	turns, err := memStore.RecentTurns("amal", 10)
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 2 {
		t.Errorf("expected exchange recorded, got %d turns", len(turns))
	}
}

func TestAskTeachFlow(t *testing.T) {
	llm := &fakeLLM{reply: "Photosynthesis turns light into chemical energy."}
	eng, memStore := setupEngine(t, llm, true)

	ans, err := eng.Ask(context.Background(), "amal", "explain the light reactions of photosynthesis", AskOptions{})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Mode != index.ModeTeach {
		t.Fatalf("covered topic must teach, got %+v", ans.Decision)
	}
	if ans.Text != llm.reply {
		t.Errorf("answer text mismatch: %q", ans.Text)
	}
	if len(ans.Results) == 0 {
		t.Error("teach answer must carry its supporting chunks")
	}

	turns, err := memStore.RecentTurns("amal", 10)
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[1].Role != "assistant" || turns[1].Content != llm.reply {
		t.Errorf("assistant turn wrong: %+v", turns[1])
	}

	n, err := memStore.SessionCount("amal")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 session, got %d", n)
	}
}

func TestAskFallbackCommitsNothing(t *testing.T) {
	llm := &fakeLLM{fail: true}
	eng, memStore := setupEngine(t, llm, true)

	ans, err := eng.Ask(context.Background(), "amal", "explain the light reactions of photosynthesis", AskOptions{})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !ans.Fallback {
		t.Fatal("generation failure must set the fallback flag")
	}
	if ans.Text != fallbackText {
		t.Errorf("expected fallback text, got %q", ans.Text)
	}

	turns, err := memStore.RecentTurns("amal", 10)
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("failed generation must not commit memory, got %d turns", len(turns))
	}
	n, _ := memStore.SessionCount("amal")
	if n != 0 {
		t.Errorf("failed generation must not record a session, got %d", n)
	}
}

func TestAskContinueExcludesSeen(t *testing.T) {
	llm := &fakeLLM{reply: "An answer grounded in the material."}
	eng, _ := setupEngine(t, llm, true)
	ctx := context.Background()

	first, err := eng.Ask(ctx, "amal", "explain photosynthesis in detail", AskOptions{})
	if err != nil {
		t.Fatalf("first ask: %v", err)
	}
	if first.Mode != index.ModeTeach {
		t.Fatalf("expected teach, got %s", first.Mode)
	}
	shown := map[string]struct{}{}
	for _, r := range first.Results {
		shown[r.Chunk.ID] = struct{}{}
	}

	second, err := eng.Ask(ctx, "amal", "explain photosynthesis in detail", AskOptions{Continue: true})
	if err != nil {
		t.Fatalf("second ask: %v", err)
	}
	for _, r := range second.Results {
		if _, seen := shown[r.Chunk.ID]; seen {
			t.Errorf("continue surfaced an already-shown chunk: %s", r.Chunk.ID)
		}
	}
}

func TestSearchAppliesGate(t *testing.T) {
	llm := &fakeLLM{}
	eng, _ := setupEngine(t, llm, true)

	res, err := eng.Search(context.Background(), "photosynthesis light reactions", index.QueryOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Decision.Mode != index.ModeTeach {
		t.Errorf("expected teach verdict, got %+v", res.Decision)
	}
	if len(res.Results) == 0 {
		t.Error("expected results")
	}
}
