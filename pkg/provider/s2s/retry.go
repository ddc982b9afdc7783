package s2s

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default connection retry parameters.
const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	defaultMaxBackoff  = 5 * time.Second
)

// RetryConfig configures [ConnectWithRetry].
type RetryConfig struct {
	// MaxAttempts is the total number of dial attempts. Defaults to 3 if zero.
	MaxAttempts int

	// Backoff is the delay before the second attempt. It doubles on every
	// further attempt up to MaxBackoff. Defaults to 500ms if zero.
	Backoff time.Duration

	// MaxBackoff caps the delay between attempts. Defaults to 5s if zero.
	MaxBackoff time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// ConnectWithRetry calls p.Connect until it succeeds, ctx is cancelled, or the
// attempt budget is exhausted. Only the initial dial is retried; a session that
// drops mid-call is reported through its event stream instead.
func ConnectWithRetry(ctx context.Context, p Provider, cfg SessionConfig, rc RetryConfig) (SessionHandle, error) {
	rc = rc.withDefaults()
	backoff := rc.Backoff

	var lastErr error
	for attempt := 1; attempt <= rc.MaxAttempts; attempt++ {
		sess, err := p.Connect(ctx, cfg)
		if err == nil {
			if attempt > 1 {
				slog.Info("s2s: connected after retry", "attempt", attempt)
			}
			return sess, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == rc.MaxAttempts {
			break
		}

		slog.Warn("s2s: connect failed, retrying",
			"attempt", attempt,
			"max_attempts", rc.MaxAttempts,
			"backoff", backoff,
			"err", err,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > rc.MaxBackoff {
			backoff = rc.MaxBackoff
		}
	}
	return nil, fmt.Errorf("s2s: connect failed after %d attempts: %w", rc.MaxAttempts, lastErr)
}
