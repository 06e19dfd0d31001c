package embed

import (
	"context"
	"sync"
)

// MockEmbedder implements Embedder for testing. When Func is nil it
// returns a deterministic unit vector derived from each text, so equal
// texts always embed identically.
type MockEmbedder struct {
	// Func, when set, overrides the default deterministic behavior.
	Func func(ctx context.Context, texts []string) ([][]float32, error)

	// Err, when set, is returned by every Embed call.
	Err error

	// Dim is the vector dimension. Defaults to 8.
	Dim int

	mu    sync.Mutex
	calls int
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Func != nil {
		return m.Func(ctx, texts)
	}
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.vectorFor(text)
	}
	return vectors, nil
}

func (m *MockEmbedder) Model() string { return "mock-embedder" }

func (m *MockEmbedder) Dimension() int {
	if m.Dim > 0 {
		return m.Dim
	}
	return 8
}

// Calls returns the number of Embed invocations.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockEmbedder) vectorFor(text string) []float32 {
	dim := m.Dimension()
	v := make([]float32, dim)
	if len(text) == 0 {
		v[0] = 1
		return v
	}
	v[int(text[0])%dim] = 1
	return v
}
