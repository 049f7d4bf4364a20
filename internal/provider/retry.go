package provider

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/aristath/g6/internal/errs"
)

// RetryConfig bounds a retry loop over a single operation (spec §4.3:
// "retry-eligible classes only, bounded by max attempts and max elapsed
// time, exponential backoff with jitter").
type RetryConfig struct {
	MaxAttempts    int           // default 3
	BaseBackoff    time.Duration // default 200ms
	MaxBackoff     time.Duration // default 5s
	MaxElapsed     time.Duration // 0 means unbounded
	JitterFraction float64       // e.g. 0.3
}

// Retry runs fn, retrying on errs.Eligible errors up to MaxAttempts times
// or until MaxElapsed has passed, whichever comes first. Non-eligible
// errors (auth, fatal, data, internal) return immediately without retry.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errs.Eligible(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if cfg.MaxElapsed > 0 && time.Since(start) >= cfg.MaxElapsed {
			break
		}

		wait := backoffFor(cfg, attempt)
		if cfg.MaxElapsed > 0 {
			remaining := cfg.MaxElapsed - time.Since(start)
			if remaining <= 0 {
				break
			}
			if wait > remaining {
				wait = remaining
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errs.Timeout(ctx.Err())
		case <-timer.C:
		}
	}

	return lastErr
}

func backoffFor(cfg RetryConfig, attempt int) time.Duration {
	backoff := time.Duration(float64(cfg.BaseBackoff) * math.Pow(2, float64(attempt-1)))
	if backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	if cfg.JitterFraction <= 0 {
		return backoff
	}
	jitter := (rand.Float64()*2 - 1) * cfg.JitterFraction
	jittered := float64(backoff) * (1 + jitter)
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}
