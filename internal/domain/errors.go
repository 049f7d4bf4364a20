package domain

import "errors"

// Sentinel causes wrapped by errs classifications in the provider
// resilience layer (spec §4.3).
var (
	ErrRateLimitCooldown = errors.New("provider in rate-limit cooldown")
	ErrRateLimitDeadline = errors.New("rate limiter deadline exceeded waiting for token")
	ErrCircuitOpen        = errors.New("circuit breaker open")
)
