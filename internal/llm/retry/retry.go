// Package retry wraps provider calls in bounded exponential backoff.
// The zero Config performs exactly one attempt.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notecheck/internal/apperr"
)

// Config bounds retries around provider errors.
type Config struct {
	// MaxRetries is the number of extra attempts; 0 disables retrying.
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	MaxJitter   time.Duration `yaml:"max_jitter"`
}

// Validate checks that every bound is non-negative.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.BaseBackoff, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxBackoff, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxJitter, validation.Min(time.Duration(0))),
	)
}

// Default is off: no retries, with backoff bounds ready for when
// MaxRetries is raised.
func Default() Config {
	return Config{
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

// Retryable reports whether err is a provider failure worth another
// attempt: rate limiting, server-side errors, or a transport failure with
// no status at all.
func Retryable(err error) bool {
	var pe *apperr.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch {
	case pe.Status == 0:
		return !errors.Is(err, apperr.ErrContentMismatch)
	case pe.Status == 429, pe.Status == 529:
		return true
	case pe.Status >= 500:
		return true
	}
	return false
}

// Backoff returns the delay before retry attempt+1, without jitter. The
// base delay doubles per attempt and stops growing at MaxBackoff, or at the
// largest Duration when MaxBackoff is unset.
func Backoff(cfg Config, attempt int) time.Duration {
	d := cfg.BaseBackoff
	if d <= 0 {
		return 0
	}
	for range attempt {
		if cfg.MaxBackoff > 0 && d >= cfg.MaxBackoff {
			break
		}
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	if cfg.MaxBackoff > 0 {
		d = min(d, cfg.MaxBackoff)
	}
	return d
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent.
func Do[T any](ctx context.Context, cfg Config, logger *slog.Logger, operation string, fn func(context.Context) (T, error)) (T, error) {
	var (
		result  T
		lastErr error
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, lastErr = fn(ctx)
		if lastErr == nil {
			return result, nil
		}
		if !Retryable(lastErr) || attempt >= cfg.MaxRetries {
			break
		}

		backoff := Backoff(cfg, attempt)
		if cfg.MaxJitter > 0 {
			if n, err := rand.Int(rand.Reader, big.NewInt(int64(cfg.MaxJitter))); err == nil {
				backoff += time.Duration(n.Int64())
			}
		}
		if logger != nil {
			logger.Warn("provider call failed, retrying",
				slog.String("operation", operation),
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", cfg.MaxRetries),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()))
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
	if cfg.MaxRetries > 0 && Retryable(lastErr) {
		return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, lastErr)
	}
	return result, lastErr
}
