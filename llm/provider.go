package llm

import "context"

// Backend is the interface every provider implements.
type Backend interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic", "ollama").
	Name() string

	// Complete sends a prompt and returns the generated continuation.
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Closer is implemented by backends that hold resources.
type Closer interface {
	Close() error
}
