// Package llm reaches review agents that live behind the Anthropic API
// instead of a local CLI. An API-backed agent participates in review
// rounds exactly like a CLI one: prompt in, raw response text out.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// maxResponseTokens bounds one completion. Reviews of large diffs run
// long, so this is generous.
const maxResponseTokens = 8192

// Client wraps the Anthropic API.
type Client struct {
	api *anthropic.Client
}

// NewClient creates an API client. An empty apiKey falls back to the
// SDK's environment lookup (ANTHROPIC_API_KEY).
func NewClient(apiKey string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{api: &client}
}

// Complete sends one prompt to model and returns the text response.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxResponseTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}
	return text, nil
}

// completer is the slice of Client the runner needs; tests substitute
// their own.
type completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Runner adapts a Client to the agent.Runner shape for one model.
type Runner struct {
	client completer
	model  string
}

// NewRunner returns a runner that reviews via the API with model.
func NewRunner(client *Client, model string) *Runner {
	return &Runner{client: client, model: model}
}

// Run performs one prompt/response round-trip.
func (r *Runner) Run(ctx context.Context, prompt string) (string, error) {
	if r.model == "" {
		return "", fmt.Errorf("api agent has no model configured")
	}
	return r.client.Complete(ctx, r.model, prompt)
}

// StripFences removes a markdown code fence wrapping s, if present.
// Some models fence their whole response even when told not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.SplitN(s, "\n", 2)
	if len(lines) > 1 {
		s = lines[1]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
