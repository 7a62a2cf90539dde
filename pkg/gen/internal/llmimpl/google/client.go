// Package google implements the generation client over the Gemini API.
package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"feedpilot/pkg/gen/llm"
)

// Client wraps the Gemini SDK.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a Gemini client.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(in.MaxTokens),
		Temperature:     genai.Ptr(in.Temperature),
	}
	if in.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: in.System}},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(in.Prompt), config)
	if err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("gemini generation failed: %w", err)
	}
	return llm.CompletionResponse{Content: result.Text()}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string { return c.model }
