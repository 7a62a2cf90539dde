// Package llm defines the provider-neutral client interface for text
// generation and the middleware chain applied around every provider.
package llm

import "context"

// Default generation parameters. Comments are short; the token ceiling keeps
// providers from rambling past what a feed comment can hold.
const (
	DefaultMaxTokens   = 256
	DefaultTemperature = 0.7
)

// CompletionRequest is one prompt-in request to a provider.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is the provider's text-out reply.
type CompletionResponse struct {
	Content string
}

// Client is the interface every generation provider implements.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// ModelName returns the model identifier for logging and metrics.
	ModelName() string
}

// NewCompletionRequest creates a request with default generation parameters.
func NewCompletionRequest(system, prompt string) CompletionRequest {
	return CompletionRequest{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}
