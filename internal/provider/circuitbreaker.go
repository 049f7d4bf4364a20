package provider

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/errs"
)

// CircuitBreakerConfig configures a per-provider circuit breaker (spec §4.3).
type CircuitBreakerConfig struct {
	FailureThreshold  int           // consecutive failures before opening; default 5
	BaseBackoff       time.Duration // default 2s
	MaxBackoff        time.Duration // default 5m
	HalfOpenSuccesses int           // successes required in half-open to close; default 2
	JitterFraction    float64       // e.g. 0.2 = +/-20% jitter on backoff
}

// CircuitBreaker implements the closed/open/half-open state machine.
// No broker response ever flows through it directly — callers report
// success/failure after invoking the upstream Client themselves.
type CircuitBreaker struct {
	mu     sync.Mutex
	cfg    CircuitBreakerConfig
	now    func() time.Time
	random func() float64

	state             domain.CircuitState
	nextAttemptAfter  time.Time
	halfOpenSuccesses int
}

const (
	circuitClosed   = "closed"
	circuitOpen     = "open"
	circuitHalfOpen = "half_open"
)

// NewCircuitBreaker builds a CircuitBreaker for the named provider.
func NewCircuitBreaker(providerName string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = 2
	}

	return &CircuitBreaker{
		cfg:    cfg,
		now:    time.Now,
		random: rand.Float64,
		state: domain.CircuitState{
			Provider: providerName,
			State:    circuitClosed,
		},
	}
}

// Allow reports whether a call may proceed. In the open state it denies
// calls until nextAttemptAfter, then transitions to half-open. In
// half-open every call is admitted; concurrent probes are not limited.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state.State {
	case circuitClosed:
		return nil
	case circuitHalfOpen:
		return nil
	case circuitOpen:
		if b.now().Before(b.nextAttemptAfter) {
			return errs.Fatal(domain.ErrCircuitOpen)
		}
		b.state.State = circuitHalfOpen
		b.halfOpenSuccesses = 0
		return nil
	default:
		return nil
	}
}

// RecordSuccess closes the circuit (from half-open, after enough
// consecutive probe successes) or keeps it closed.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state.State {
	case circuitHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenSuccesses {
			b.resetToClosedLocked()
		}
	case circuitClosed:
		b.state.Failures = 0
		b.state.ConsecutiveOpens = 0
	}
}

// RecordFailure increments the failure count and opens the circuit once
// the threshold is reached, applying jittered exponential backoff keyed
// on how many times the circuit has opened before (spec §4.3).
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.state.LastFailure = now

	switch b.state.State {
	case circuitHalfOpen:
		b.openLocked(now)
	case circuitClosed:
		b.state.Failures++
		if b.state.Failures >= b.cfg.FailureThreshold {
			b.openLocked(now)
		}
	}
}

func (b *CircuitBreaker) openLocked(now time.Time) {
	b.state.State = circuitOpen
	b.state.ConsecutiveOpens++
	backoff := b.backoffForLocked(b.state.ConsecutiveOpens)
	b.state.NextAttemptAfter = now.Add(backoff)
	b.nextAttemptAfter = b.state.NextAttemptAfter
}

func (b *CircuitBreaker) resetToClosedLocked() {
	b.state.State = circuitClosed
	b.state.Failures = 0
	b.state.ConsecutiveOpens = 0
	b.halfOpenSuccesses = 0
}

// backoffForLocked computes base * 2^(opens-1), capped at MaxBackoff,
// with +/-JitterFraction jitter applied.
func (b *CircuitBreaker) backoffForLocked(opens int) time.Duration {
	exp := math.Pow(2, float64(opens-1))
	backoff := time.Duration(float64(b.cfg.BaseBackoff) * exp)
	if backoff > b.cfg.MaxBackoff || backoff <= 0 {
		backoff = b.cfg.MaxBackoff
	}

	if b.cfg.JitterFraction <= 0 {
		return backoff
	}
	jitter := (b.random()*2 - 1) * b.cfg.JitterFraction
	jittered := float64(backoff) * (1 + jitter)
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// State returns a snapshot suitable for persistence (spec §3 CircuitState).
func (b *CircuitBreaker) State() domain.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Restore reinstates a previously persisted state, e.g. at process startup.
func (b *CircuitBreaker) Restore(s domain.CircuitState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.State == "" {
		s.State = circuitClosed
	}
	b.state = s
	b.nextAttemptAfter = s.NextAttemptAfter
}
