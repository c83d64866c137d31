// Package llm provides the summarization and embedding provider clients.
package llm

import (
	"context"
)

// Generator produces a text completion for a prompt. Implemented by the
// OpenAI-compatible client and the Anthropic fallback client.
// Use this interface for dependency injection to enable mocking in tests.
type Generator interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string, model string) ([]float32, error)
}

// Ensure the concrete clients satisfy the interfaces at compile time.
var (
	_ Generator = (*Client)(nil)
	_ Embedder  = (*Client)(nil)
	_ Generator = (*AnthropicClient)(nil)
)
