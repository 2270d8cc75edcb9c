// Package llm selects and configures the note generators and the
// comparison model.
package llm

import (
	"context"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notecheck/internal/llm/anthropic"
	"github.com/starford/notecheck/internal/llm/bluehive"
	"github.com/starford/notecheck/internal/llm/compare"
	"github.com/starford/notecheck/internal/llm/ollama"
	"github.com/starford/notecheck/internal/llm/retry"
)

// Generator turns one input document into generated text.
type Generator interface {
	Send(ctx context.Context, text string) (string, error)
	// Model names the model; it becomes the model segment of run paths.
	Model() string
}

// Comparer reports clinically significant differences between two notes.
type Comparer interface {
	Compare(ctx context.Context, a, b string) (compare.Comparison, error)
}

// BlueHiveConfig configures the hosted completion API.
type BlueHiveConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// Config holds every provider's settings.
type Config struct {
	BlueHive  BlueHiveConfig   `yaml:"bluehive"`
	Ollama    ollama.Config    `yaml:"ollama"`
	Anthropic anthropic.Config `yaml:"anthropic"`
	OpenAI    compare.Config   `yaml:"openai"`
}

// Validate checks the fields that have a fixed shape.
func (c *Config) Validate() error {
	return validation.ValidateStruct(&c.Anthropic,
		validation.Field(&c.Anthropic.MaxTokens, validation.Min(0)),
	)
}

// DefaultConfig returns the public endpoints with no credentials.
func DefaultConfig() Config {
	return Config{
		BlueHive: BlueHiveConfig{URL: bluehive.DefaultURL},
		Ollama:   ollama.Config{Host: ollama.DefaultHost, CloudHost: ollama.DefaultCloudHost},
		Anthropic: anthropic.Config{
			MaxTokens: anthropic.DefaultMaxTokens,
		},
		OpenAI: compare.Config{Model: compare.DefaultModel},
	}
}

// NewGenerator picks a provider by model name: bluehive (or its older name
// ozwell) for the hosted API, claude-* for Anthropic, anything else for
// Ollama. The result retries per rc.
func NewGenerator(cfg Config, rc retry.Config, model, prompt string, logger *slog.Logger) (Generator, error) {
	var (
		g   Generator
		err error
	)
	switch m := strings.ToLower(model); {
	case m == bluehive.Name || m == "ozwell":
		g = bluehive.New(cfg.BlueHive.URL, cfg.BlueHive.APIKey, model, prompt, logger)
	case anthropic.IsClaude(m):
		g, err = anthropic.New(cfg.Anthropic, model, prompt)
	default:
		g, err = ollama.New(cfg.Ollama, model, prompt)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(g, rc, logger), nil
}

// NewComparer returns the tool-calling comparer, retrying per rc.
func NewComparer(cfg Config, rc retry.Config, system string, logger *slog.Logger) (Comparer, error) {
	c, err := compare.New(cfg.OpenAI, system)
	if err != nil {
		return nil, err
	}
	if rc.MaxRetries == 0 {
		return c, nil
	}
	return &retryingComparer{next: c, cfg: rc, logger: logger}, nil
}

// WithRetry wraps g so failed sends are retried per rc. With no retries
// configured g is returned unchanged.
func WithRetry(g Generator, rc retry.Config, logger *slog.Logger) Generator {
	if rc.MaxRetries == 0 {
		return g
	}
	return &retryingGenerator{next: g, cfg: rc, logger: logger}
}

type retryingGenerator struct {
	next   Generator
	cfg    retry.Config
	logger *slog.Logger
}

func (r *retryingGenerator) Model() string { return r.next.Model() }

func (r *retryingGenerator) Send(ctx context.Context, text string) (string, error) {
	return retry.Do(ctx, r.cfg, r.logger, r.next.Model()+" send", func(ctx context.Context) (string, error) {
		return r.next.Send(ctx, text)
	})
}

type retryingComparer struct {
	next   Comparer
	cfg    retry.Config
	logger *slog.Logger
}

func (r *retryingComparer) Compare(ctx context.Context, a, b string) (compare.Comparison, error) {
	return retry.Do(ctx, r.cfg, r.logger, "compare", func(ctx context.Context) (compare.Comparison, error) {
		return r.next.Compare(ctx, a, b)
	})
}
