// Package llm wraps the language-generation provider behind a narrow
// capability interface so it is swappable and mockable in tests. The
// insight generators consume pre-assembled prompts and never talk to a
// provider SDK directly.
package llm

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces text from a prompt using the configured model.
	// Returns the generated text or an error if generation fails.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds common configuration options for LLM providers.
type Config struct {
	// Model specifies the model identifier (e.g., "gpt-4o")
	Model string

	// Temperature controls randomness (0.0 = deterministic, 2.0 = very random)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// Timeout bounds each provider call; the engine never blocks
	// indefinitely on generation.
	Timeout time.Duration

	// APIKey is the authentication key for the provider
	APIKey string
}

// DefaultConfig returns sensible defaults for insight generation.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o",
		Temperature: 0, // model default
		MaxTokens:   2000,
		Timeout:     30 * time.Second,
	}
}
