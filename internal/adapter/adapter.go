// Package adapter provides a unified interface for LLM providers and embedders.
package adapter

import (
	"context"
	"fmt"
	"strings"
)

// Provider name constants.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// StreamChunk is a single token or error delivered during streaming.
type StreamChunk struct {
	Text  string
	Error error
}

// Turn is one prior exchange message passed to the model as history.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// CompletionRequest holds the parameters for a completion call. Context is
// the assembled study context (retrieved material plus memory) and History
// is the recent conversation window, oldest first.
type CompletionRequest struct {
	SystemPrompt string
	Context      string
	History      []Turn
	UserMessage  string
	Model        string
	MaxTokens    int
	Temperature  float64
	Stream       bool
}

// ModelInfo describes the capabilities of a model.
type ModelInfo struct {
	Name               string
	Provider           string
	MaxContextWindow   int
	SupportsStreaming  bool
	EmbeddingDimension int // 0 if not an embedding model
}

// LLMAdapter is the common interface all provider adapters implement.
type LLMAdapter interface {
	// Complete sends a prompt and streams the response.
	Complete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// Embed generates embeddings for a batch of texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Info returns metadata about the adapter/model.
	Info() ModelInfo
}

// New constructs the LLMAdapter for the named provider.
//
//   - provider: "claude", "openai", "gemini", "ollama"
//   - embedModel: embedding model name (used by Ollama; ignored by others)
//   - apiKey: provider API key (empty = read from env in the concrete adapter)
//   - ollamaHost: base URL for the Ollama server (used only when provider == "ollama")
func New(provider, embedModel, apiKey, ollamaHost string) (LLMAdapter, error) {
	switch provider {
	case ProviderClaude:
		return NewClaude(apiKey), nil
	case ProviderOpenAI:
		return NewOpenAI(apiKey), nil
	case ProviderGemini:
		return NewGemini(apiKey), nil
	case ProviderOllama:
		host := ollamaHost
		if host == "" {
			host = "http://localhost:11434"
		}
		model := embedModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllama(host, model), nil
	default:
		return nil, fmt.Errorf("adapter: unknown provider %q; valid providers: claude, openai, gemini, ollama", provider)
	}
}

// Collect drains a completion stream into a single string. It returns the
// text accumulated so far together with the first error encountered.
func Collect(ch <-chan StreamChunk) (string, error) {
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Error != nil {
			return sb.String(), chunk.Error
		}
		sb.WriteString(chunk.Text)
	}
	return sb.String(), nil
}
