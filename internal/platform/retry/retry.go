// Package retry provides the single retry combinator used by every
// network-facing component: collectors, model providers and the
// revalidation client all share the same backoff behavior.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 10 * time.Second
)

// Config configures the retry loop. Zero values fall back to defaults.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// OnRetry is called after each failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns the retry configuration used by most callers.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  defaultMaxAttempts,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
	}
}

// Permanent wraps err so Do stops retrying and returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op with capped exponential backoff until it succeeds, returns
// a permanent error, exhausts MaxAttempts or ctx is canceled. The last
// attempt's error is returned.
func Do(ctx context.Context, cfg Config, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}

	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialDelay
	exp.MaxInterval = cfg.MaxDelay
	exp.MaxElapsedTime = 0

	var policy backoff.BackOff = backoff.WithMaxRetries(exp, uint64(cfg.MaxAttempts-1))
	policy = backoff.WithContext(policy, ctx)

	attempt := 0

	notify := func(err error, _ time.Duration) {
		attempt++

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
	}

	return backoff.RetryNotify(op, policy, notify)
}
