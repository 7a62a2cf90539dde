// Package ollama implements the generation client against a local Ollama
// server, for running without any hosted API.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"feedpilot/pkg/gen/llm"
)

// Client wraps the Ollama chat API.
type Client struct {
	client *api.Client
	model  string
}

// New creates a client for the Ollama server at hostURL.
func New(hostURL, model string) (*Client, error) {
	parsed, err := url.Parse(hostURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", hostURL, err)
	}
	return &Client{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
	}, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages := make([]api.Message, 0, 2)
	if in.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: in.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: in.Prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": float64(in.Temperature),
			"num_predict": in.MaxTokens,
		},
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("ollama chat failed: %w", err)
	}
	return llm.CompletionResponse{Content: content.String()}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string { return c.model }
