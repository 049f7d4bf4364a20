package provider

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/errs"
)

// RateLimiterConfig configures a token-bucket limiter (spec §4.3).
type RateLimiterConfig struct {
	QPS                 float64       // sustained refill rate, tokens/sec
	MaxBurst            float64       // bucket capacity; 0 defaults to 2*QPS
	ConsecutiveThreshold int          // 429s before cooldown opens; default 5
	CooldownDuration     time.Duration // default 20s
}

// RateLimiter is a token-bucket + 429-cooldown guard, one per provider
// (spec §2 RateLimiter, §4.3, §8 testable property on successful-acquire bound).
type RateLimiter struct {
	mu sync.Mutex

	capacity   float64
	tokens     float64
	qps        float64
	lastRefill time.Time

	consecutiveThreshold int
	cooldownDuration     time.Duration
	consecutive429       int
	cooldownUntil        time.Time

	now func() time.Time
}

// NewRateLimiter builds a RateLimiter from cfg.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	burst := cfg.MaxBurst
	if burst <= 0 {
		burst = cfg.QPS * 2
	}
	threshold := cfg.ConsecutiveThreshold
	if threshold <= 0 {
		threshold = 5
	}
	cooldown := cfg.CooldownDuration
	if cooldown <= 0 {
		cooldown = 20 * time.Second
	}

	return &RateLimiter{
		capacity:             burst,
		tokens:               burst,
		qps:                  cfg.QPS,
		lastRefill:           time.Now(),
		consecutiveThreshold: threshold,
		cooldownDuration:     cooldown,
		now:                  time.Now,
	}
}

func (r *RateLimiter) refillLocked(at time.Time) {
	elapsed := at.Sub(r.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	r.tokens += elapsed * r.qps
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
	r.lastRefill = at
}

// Acquire waits for a token, up to deadline (or ctx cancellation). Returns
// a RateLimited classified error if the provider is in cooldown or the
// deadline elapses before a token frees up (spec §4.3).
func (r *RateLimiter) Acquire(ctx context.Context, deadline time.Time) error {
	for {
		now := r.now()

		r.mu.Lock()
		if now.Before(r.cooldownUntil) {
			r.mu.Unlock()
			return errs.RateLimited(domain.ErrRateLimitCooldown)
		}

		r.refillLocked(now)
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}

		// Compute wait until the next token, capped by the caller's
		// deadline; the cooldown is checked again on the next pass.
		need := 1 - r.tokens
		var waitFor time.Duration
		if r.qps > 0 {
			waitFor = time.Duration(need / r.qps * float64(time.Second))
		} else {
			waitFor = time.Hour
		}
		r.mu.Unlock()

		wakeAt := now.Add(waitFor)
		if wakeAt.After(deadline) {
			return errs.RateLimited(domain.ErrRateLimitDeadline)
		}

		timer := time.NewTimer(waitFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errs.Timeout(ctx.Err())
		case <-timer.C:
		}
	}
}

// OnRateLimitSignal records a provider-signaled 429/"too many requests".
// Tokens already spent are not refunded (spec §4.3); once
// ConsecutiveThreshold is reached, acquire() short-circuits for
// CooldownDuration.
func (r *RateLimiter) OnRateLimitSignal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consecutive429++
	if r.consecutive429 >= r.consecutiveThreshold {
		r.cooldownUntil = r.now().Add(r.cooldownDuration)
	}
}

// OnSuccess resets the consecutive-429 counter after a successful call.
func (r *RateLimiter) OnSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutive429 = 0
}

// State returns a snapshot suitable for persistence (spec §3 RateLimiterState).
func (r *RateLimiter) State(providerName string) domain.RateLimiterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RateLimiterState{
		Provider:       providerName,
		Tokens:         r.tokens,
		LastRefill:     r.lastRefill,
		CooldownUntil:  r.cooldownUntil,
		Consecutive429: r.consecutive429,
	}
}

// Restore reinstates a previously persisted state.
func (r *RateLimiter) Restore(s domain.RateLimiterState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = s.Tokens
	r.lastRefill = s.LastRefill
	r.cooldownUntil = s.CooldownUntil
	r.consecutive429 = s.Consecutive429
}
