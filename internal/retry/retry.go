// Package retry runs model calls with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Backoff defaults
const (
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// Config configures exponential backoff. MaxAttempts counts the first call,
// so 1 means a failure is returned without retrying.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultConfig makes a single attempt
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 1,
		BaseDelay:   time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:    time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier:  BackoffMultiplier,
	}
}

// WithAttempts returns a copy of c allowing n attempts
func (c Config) WithAttempts(n int) Config {
	c.MaxAttempts = n
	return c
}

// Do runs fn until it succeeds or the attempts are exhausted. Every retry is
// logged at warn level. Context cancellation stops immediately.
func Do[T any](ctx context.Context, config Config, logger zerolog.Logger, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay
	attempts := max(config.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == attempts {
			break
		}

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", backoff).
			Msg("model call failed, retrying")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * config.Multiplier)
			if config.MaxDelay > 0 && backoff > config.MaxDelay {
				backoff = config.MaxDelay
			}
		}
	}

	return zero, lastErr
}
