// Package oai holds the go-openai plumbing shared by the OpenAI-compatible
// providers.
package oai

import (
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/starford/notecheck/internal/apperr"
)

// NewClient returns a client for apiKey, pointed at baseURL when set.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// ProviderError converts a go-openai failure into an apperr.ProviderError
// carrying the HTTP status when one is known.
func ProviderError(provider string, err error) error {
	pe := &apperr.ProviderError{Provider: provider, Err: err}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.Status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		pe.Status = reqErr.HTTPStatusCode
	}
	return pe
}
