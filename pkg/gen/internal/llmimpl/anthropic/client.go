// Package anthropic implements the generation client over the official
// Anthropic Go SDK.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"feedpilot/pkg/gen/llm"
)

// Client wraps the official Anthropic SDK.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates a raw Anthropic client; middleware is applied at a higher level.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(in.Prompt)),
		},
	}
	if in.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: in.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("anthropic message failed: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return llm.CompletionResponse{Content: content.String()}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string { return string(c.model) }
