// Package ollama generates notes through an Ollama server's
// OpenAI-compatible endpoint, local or hosted.
package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/starford/notecheck/internal/apperr"
	"github.com/starford/notecheck/internal/llm/oai"
)

// Name identifies the provider in errors.
const Name = "ollama"

// Default hosts.
const (
	DefaultHost      = "http://localhost:11434"
	DefaultCloudHost = "https://ollama.com"
)

// cloudSuffix marks models served by the hosted service.
const cloudSuffix = "-cloud"

// Config selects hosts and the optional credential.
type Config struct {
	Host      string `yaml:"host"`
	CloudHost string `yaml:"cloud_host"`
	APIKey    string `yaml:"api_key"`
}

// IsCloud reports whether model must be served by the hosted service.
func IsCloud(model string) bool {
	return strings.HasSuffix(model, cloudSuffix)
}

// Client generates with one model and system prompt.
type Client struct {
	api    *openai.Client
	model  string
	prompt string
}

// New returns a client for model. Cloud models require an API key.
func New(cfg Config, model, prompt string) (*Client, error) {
	if model == "" {
		return nil, apperr.Configf("ollama model is required")
	}
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	if IsCloud(model) {
		if cfg.APIKey == "" {
			return nil, apperr.Configf("ollama cloud model %q requires an api key", model)
		}
		host = cfg.CloudHost
		if host == "" {
			host = DefaultCloudHost
		}
	}
	base := strings.TrimRight(host, "/") + "/v1"
	return &Client{api: oai.NewClient(cfg.APIKey, base), model: model, prompt: prompt}, nil
}

// Model returns the served model name.
func (c *Client) Model() string { return c.model }

// Send generates a completion for text under the system prompt.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", oai.ProviderError(Name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &apperr.ProviderError{Provider: Name, Err: fmt.Errorf("%w: empty completion", apperr.ErrContentMismatch)}
	}
	return resp.Choices[0].Message.Content, nil
}
