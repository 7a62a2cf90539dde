// Package openai implements the generation client over the official OpenAI
// Go SDK using the chat completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"feedpilot/pkg/gen/llm"
)

// Client wraps the official OpenAI SDK.
type Client struct {
	client openai.Client
	model  string
}

// New creates a raw OpenAI client; middleware is applied at a higher level.
func New(apiKey, model string) *Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if in.System != "" {
		messages = append(messages, openai.SystemMessage(in.System))
	}
	messages = append(messages, openai.UserMessage(in.Prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(in.MaxTokens)),
		Temperature: openai.Float(float64(in.Temperature)),
	})
	if err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, fmt.Errorf("openai returned no choices")
	}
	return llm.CompletionResponse{Content: resp.Choices[0].Message.Content}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string { return c.model }
