package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notecheck/internal/apperr"
)

func providerErr(status int) error {
	return &apperr.ProviderError{Provider: "test", Status: status, Err: errors.New("boom")}
}

func TestDoDefaultMakesOneAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Default(), nil, "send", func(context.Context) (string, error) {
		calls++
		return "", providerErr(503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, apperr.ErrProvider)
}

func TestDoRetriesRetryable(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	calls := 0
	got, err := Do(context.Background(), cfg, nil, "send", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", providerErr(429)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnClientError(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseBackoff: time.Millisecond}
	calls := 0
	_, err := Do(context.Background(), cfg, nil, "send", func(context.Context) (int, error) {
		calls++
		return 0, providerErr(401)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUp(t *testing.T) {
	cfg := Config{MaxRetries: 2, BaseBackoff: time.Millisecond}
	calls := 0
	_, err := Do(context.Background(), cfg, nil, "send", func(context.Context) (int, error) {
		calls++
		return 0, providerErr(500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestDoHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, BaseBackoff: time.Hour}
	_, err := Do(ctx, cfg, nil, "send", func(context.Context) (int, error) {
		cancel()
		return 0, providerErr(503)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(providerErr(0)))
	assert.True(t, Retryable(providerErr(529)))
	assert.False(t, Retryable(providerErr(400)))
	assert.False(t, Retryable(errors.New("plain")))
	shape := &apperr.ProviderError{Provider: "x", Err: apperr.ErrContentMismatch}
	assert.False(t, Retryable(shape))
}

func TestValidate(t *testing.T) {
	bad := Config{MaxRetries: -1}
	assert.Error(t, bad.Validate())
	good := Default()
	assert.NoError(t, good.Validate())
}

func TestBackoffCapsLargeAttempts(t *testing.T) {
	cfg := Config{BaseBackoff: time.Second, MaxBackoff: 30 * time.Second}
	assert.Equal(t, time.Second, Backoff(cfg, 0))
	assert.Equal(t, 4*time.Second, Backoff(cfg, 2))
	for _, attempt := range []int{5, 40, 64, 100, 1000} {
		assert.Equal(t, cfg.MaxBackoff, Backoff(cfg, attempt), "attempt %d", attempt)
	}

	uncapped := Config{BaseBackoff: time.Second}
	for _, attempt := range []int{40, 64, 100} {
		assert.Positive(t, Backoff(uncapped, attempt), "attempt %d", attempt)
	}
	assert.Zero(t, Backoff(Config{}, 10))
}
