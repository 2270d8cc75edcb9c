// Package anthropic generates notes with Claude models through the
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/starford/notecheck/internal/apperr"
)

// Name identifies the provider in errors.
const Name = "anthropic"

// DefaultMaxTokens caps generated notes when the config leaves it unset.
const DefaultMaxTokens = 2048

// Config holds the credential and output budget.
type Config struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Client generates with one Claude model and system prompt.
type Client struct {
	api       anthropic.Client
	model     string
	prompt    string
	maxTokens int64
}

// IsClaude reports whether model names a Claude model.
func IsClaude(model string) bool {
	return strings.HasPrefix(model, "claude")
}

// New returns a client. SDK-level retries are disabled; the retry package
// owns that policy.
func New(cfg Config, model, prompt string) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apperr.Configf("anthropic api key is required for %q", model)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Client{
		api:       anthropic.NewClient(opts...),
		model:     model,
		prompt:    prompt,
		maxTokens: int64(maxTokens),
	}, nil
}

// Model returns the Claude model name.
func (c *Client) Model() string { return c.model }

// Send generates a completion for text under the system prompt.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	}
	if c.prompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.prompt}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		pe := &apperr.ProviderError{Provider: Name, Err: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			pe.Status = apiErr.StatusCode
		}
		return "", pe
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return "", &apperr.ProviderError{Provider: Name, Err: fmt.Errorf("%w: no text content", apperr.ErrContentMismatch)}
	}
	return b.String(), nil
}
