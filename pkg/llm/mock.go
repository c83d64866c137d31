package llm

import (
	"context"
	"sync"
)

// MockGenerator is a configurable Generator for tests.
type MockGenerator struct {
	mu sync.Mutex

	// Response is returned for every call unless ResponseFunc is set.
	Response string
	// Err is returned for every call unless ErrFunc is set.
	Err error
	// ResponseFunc, if set, computes the response per call.
	ResponseFunc func(prompt string) (string, error)
	// Model is returned from GetModel.
	Model string

	// Calls records every prompt received.
	Calls []string
}

// GenerateResponse implements Generator.
func (m *MockGenerator) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, prompt)
	m.mu.Unlock()

	if m.ResponseFunc != nil {
		return m.ResponseFunc(prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// GetModel implements Generator.
func (m *MockGenerator) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// CallCount returns the number of calls received.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockEmbedder is a configurable Embedder for tests.
type MockEmbedder struct {
	mu sync.Mutex

	Vector []float32
	Err    error
	// EmbedFunc, if set, computes the vector per call.
	EmbedFunc func(input string) ([]float32, error)

	Calls []string
	// Models records the model argument of every call.
	Models []string
}

// CreateEmbedding implements Embedder.
func (m *MockEmbedder) CreateEmbedding(ctx context.Context, input, model string) ([]float32, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, input)
	m.Models = append(m.Models, model)
	m.mu.Unlock()

	if m.EmbedFunc != nil {
		return m.EmbedFunc(input)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Vector != nil {
		return m.Vector, nil
	}
	return make([]float32, 1536), nil
}

var (
	_ Generator = (*MockGenerator)(nil)
	_ Embedder  = (*MockEmbedder)(nil)
)
