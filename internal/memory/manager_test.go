package memory

import (
	"context"
	"testing"
	"time"

	"github.com/lectern/lectern/internal/adapter"
)

// stalledLLM blocks in Complete until its context expires, imitating a
// hung extraction backend.
type stalledLLM struct{}

func (s *stalledLLM) Complete(ctx context.Context, _ adapter.CompletionRequest) (<-chan adapter.StreamChunk, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stalledLLM) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, context.DeadlineExceeded
}

func (s *stalledLLM) Info() adapter.ModelInfo {
	return adapter.ModelInfo{Name: "stalled", Provider: "fake"}
}

func TestRecordExchangeDoesNotWaitOnExtraction(t *testing.T) {
	store := setupTestDB(t)

	opts := DefaultManagerOptions()
	opts.ExtractionOn = true
	opts.MinTurnLen = 1
	opts.ExtractTimeout = 100 * time.Millisecond

	m := NewManager(store, nil, &stalledLLM{}, nil, opts, nil)

	start := time.Now()
	err := m.RecordExchange(context.Background(), "amal", "tell me about osmosis", "Osmosis moves water across membranes.")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("record exchange: %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("RecordExchange took %s: it must not wait on the extraction call", elapsed)
	}

	// Turns are committed regardless of what extraction does.
	turns, err := store.RecentTurns("amal", 10)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 archived turns, got %d", len(turns))
	}

	// The background extraction is bounded by its own timeout.
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("extraction did not finish within its timeout")
	}
}

func TestRecordExchangeSkipsShortExchanges(t *testing.T) {
	store := setupTestDB(t)

	opts := DefaultManagerOptions()
	opts.ExtractionOn = true
	opts.MinTurnLen = 1000
	opts.ExtractTimeout = 50 * time.Millisecond

	m := NewManager(store, nil, &stalledLLM{}, nil, opts, nil)

	if err := m.RecordExchange(context.Background(), "amal", "hi", "Hello."); err != nil {
		t.Fatalf("record exchange: %v", err)
	}
	m.Wait() // returns immediately: nothing was scheduled

	facts, _ := store.ListFacts("amal", 10)
	if len(facts) != 0 {
		t.Errorf("short exchange must not extract facts, got %d", len(facts))
	}
}
