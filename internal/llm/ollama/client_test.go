package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notecheck/internal/apperr"
)

func TestNewCloudRequiresKey(t *testing.T) {
	_, err := New(Config{}, "gpt-oss:120b-cloud", "p")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	c, err := New(Config{APIKey: "k"}, "gpt-oss:120b-cloud", "p")
	require.NoError(t, err)
	assert.Equal(t, "gpt-oss:120b-cloud", c.Model())
	assert.True(t, IsCloud(c.Model()))
	assert.False(t, IsCloud("llama3.2"))
}

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "Summarize.", req.Messages[0].Content)
		assert.Equal(t, "Doctor: hi", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"llama3.2","choices":[{"index":0,"message":{"role":"assistant","content":"a note"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{Host: srv.URL}, "llama3.2", "Summarize.")
	require.NoError(t, err)
	got, err := c.Send(context.Background(), "Doctor: hi")
	require.NoError(t, err)
	assert.Equal(t, "a note", got)
}

func TestSendStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"loading model","type":"server_error"}}`))
	}))
	defer srv.Close()

	c, err := New(Config{Host: srv.URL}, "llama3.2", "p")
	require.NoError(t, err)
	_, err = c.Send(context.Background(), "x")
	var pe *apperr.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusServiceUnavailable, pe.Status)
}
