package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/errs"
)

// FailoverHook is invoked whenever the composite provider falls through
// from one member to the next, so callers can bump
// provider_failover_total{from,to} (spec §6).
type FailoverHook func(from, to string)

// member pairs a Client with the resilience guards that protect calls to it.
type member struct {
	client  Client
	limiter *RateLimiter
	breaker *CircuitBreaker
}

// Composite fans a call out across an ordered list of providers,
// attempting each in turn until one succeeds, guarded per-member by a
// rate limiter and circuit breaker (spec §2 composite/failover provider,
// §4.3).
type Composite struct {
	members []member
	onFailover FailoverHook
}

// NewComposite builds a Composite over providers in priority order.
// Each provider gets its own rate limiter and circuit breaker.
func NewComposite(providers []Client, limiterCfg RateLimiterConfig, breakerCfg CircuitBreakerConfig, onFailover FailoverHook) *Composite {
	members := make([]member, 0, len(providers))
	for _, p := range providers {
		members = append(members, member{
			client:  p,
			limiter: NewRateLimiter(limiterCfg),
			breaker: NewCircuitBreaker(p.Name(), breakerCfg),
		})
	}
	return &Composite{members: members, onFailover: onFailover}
}

// Name reports a composite identity built from its members, for logging.
func (c *Composite) Name() string {
	if len(c.members) == 0 {
		return "composite(empty)"
	}
	return fmt.Sprintf("composite(%s,...)", c.members[0].client.Name())
}

// call runs fn against each member in order until one succeeds or all
// are exhausted, respecting each member's circuit breaker and rate
// limiter and reporting outcomes back to them.
func (c *Composite) call(ctx context.Context, deadline time.Time, fn func(Client) error) error {
	if len(c.members) == 0 {
		return errs.Fatal(fmt.Errorf("composite provider has no members"))
	}

	var lastErr error
	for i := range c.members {
		m := &c.members[i]

		if err := m.breaker.Allow(); err != nil {
			lastErr = err
			c.notifyFailover(i)
			continue
		}
		if err := m.limiter.Acquire(ctx, deadline); err != nil {
			lastErr = err
			c.notifyFailover(i)
			continue
		}

		err := fn(m.client)
		if err == nil {
			m.breaker.RecordSuccess()
			m.limiter.OnSuccess()
			return nil
		}

		lastErr = err
		if errs.ClassOf(err) == errs.ClassRateLimited {
			m.limiter.OnRateLimitSignal()
		}
		m.breaker.RecordFailure()
		c.notifyFailover(i)
	}

	return lastErr
}

// CircuitStates snapshots every member's circuit-breaker state, keyed
// by provider name, for persistence by internal/state (spec §6
// "Persisted state").
func (c *Composite) CircuitStates() map[string]domain.CircuitState {
	out := make(map[string]domain.CircuitState, len(c.members))
	for _, m := range c.members {
		out[m.client.Name()] = m.breaker.State()
	}
	return out
}

// RateLimiterStates snapshots every member's rate-limiter state, keyed
// by provider name.
func (c *Composite) RateLimiterStates() map[string]domain.RateLimiterState {
	out := make(map[string]domain.RateLimiterState, len(c.members))
	for _, m := range c.members {
		out[m.client.Name()] = m.limiter.State(m.client.Name())
	}
	return out
}

// Restore applies previously persisted circuit/rate-limiter states to
// the matching members, by provider name. Unknown keys are ignored.
func (c *Composite) Restore(circuit map[string]domain.CircuitState, rate map[string]domain.RateLimiterState) {
	for i := range c.members {
		name := c.members[i].client.Name()
		if s, ok := circuit[name]; ok {
			c.members[i].breaker.Restore(s)
		}
		if s, ok := rate[name]; ok {
			c.members[i].limiter.Restore(s)
		}
	}
}

func (c *Composite) notifyFailover(fromIndex int) {
	if c.onFailover == nil || fromIndex+1 >= len(c.members) {
		return
	}
	c.onFailover(c.members[fromIndex].client.Name(), c.members[fromIndex+1].client.Name())
}

// GetSpot implements Client by failing over across members.
func (c *Composite) GetSpot(ctx context.Context, index string) (float64, time.Time, error) {
	var price float64
	var ts time.Time
	err := c.call(ctx, time.Now().Add(5*time.Second), func(cl Client) error {
		var innerErr error
		price, ts, innerErr = cl.GetSpot(ctx, index)
		return innerErr
	})
	return price, ts, err
}

// GetInstruments implements Client by failing over across members.
func (c *Composite) GetInstruments(ctx context.Context, index string) ([]domain.Instrument, error) {
	var instruments []domain.Instrument
	err := c.call(ctx, time.Now().Add(10*time.Second), func(cl Client) error {
		var innerErr error
		instruments, innerErr = cl.GetInstruments(ctx, index)
		return innerErr
	})
	return instruments, err
}

// GetQuotes implements Client by failing over across members.
func (c *Composite) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	var quotes map[string]domain.Quote
	err := c.call(ctx, time.Now().Add(10*time.Second), func(cl Client) error {
		var innerErr error
		quotes, innerErr = cl.GetQuotes(ctx, symbols)
		return innerErr
	})
	return quotes, err
}
