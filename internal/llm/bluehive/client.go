// Package bluehive is a client for the hosted BlueHive completion API.
package bluehive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/starford/notecheck/internal/apperr"
)

// Name identifies the provider in errors and run directories.
const Name = "bluehive"

// DefaultURL is the hosted completion endpoint.
const DefaultURL = "https://ai.bluehive.com/api/v1/completion"

// Client sends a prompt template plus one input document per request.
type Client struct {
	http   *retryablehttp.Client
	url    string
	apiKey string
	model  string
	prompt string
}

type request struct {
	Prompt        string `json:"prompt"`
	SystemMessage string `json:"systemMessage"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// New returns a client that reports model as its path segment, or Name when
// model is empty. Transport-level retries are disabled; callers wrap Send
// with the retry package when they want them.
func New(url, apiKey, model, prompt string, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if model == "" {
		model = Name
	}
	hc := retryablehttp.NewClient()
	hc.RetryMax = 0
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if logger != nil {
		hc.Logger = logger.With(slog.String("provider", Name))
	} else {
		hc.Logger = nil
	}
	return &Client{http: hc, url: url, apiKey: apiKey, model: model, prompt: prompt}
}

// Model returns the model name the client was built for.
func (c *Client) Model() string { return c.model }

// Send posts text as the system message alongside the prompt template and
// returns the first choice's content.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(request{Prompt: c.prompt, SystemMessage: text})
	if err != nil {
		return "", fmt.Errorf("bluehive: marshal: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("bluehive: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &apperr.ProviderError{Provider: Name, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", &apperr.ProviderError{Provider: Name, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &apperr.ProviderError{
			Provider: Name,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(raw))),
		}
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &apperr.ProviderError{Provider: Name, Status: resp.StatusCode, Err: fmt.Errorf("%w: decode: %v", apperr.ErrContentMismatch, err)}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", &apperr.ProviderError{Provider: Name, Status: resp.StatusCode, Err: fmt.Errorf("%w: no choices[0].message.content", apperr.ErrContentMismatch)}
	}
	return out.Choices[0].Message.Content, nil
}
