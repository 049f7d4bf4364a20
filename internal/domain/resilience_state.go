package domain

import "time"

// CircuitState is the persisted state of one provider's circuit breaker
// (spec §3, §4.3).
type CircuitState struct {
	Provider          string    `json:"provider"`
	State             string    `json:"state"` // closed, half_open, open
	Failures          int       `json:"failures"`
	ConsecutiveOpens  int       `json:"consecutive_opens"`
	LastFailure       time.Time `json:"last_failure"`
	NextAttemptAfter  time.Time `json:"next_attempt_after"`
	HalfOpenSuccesses int       `json:"half_open_successes"`
}

// RateLimiterState is the per-provider token bucket state (spec §3, §4.3).
type RateLimiterState struct {
	Provider       string    `json:"provider"`
	Tokens         float64   `json:"tokens"`
	LastRefill     time.Time `json:"last_refill"`
	CooldownUntil  time.Time `json:"cooldown_until"`
	Consecutive429 int       `json:"consecutive_429"`
}

// AlertStreakState is the persisted streak/suppression state for one
// (alert type, index, expiry) scope, written under alerts_state_dir
// (spec §6 "Persisted state").
type AlertStreakState struct {
	AlertType        AlertType `json:"alert_type"`
	Index            string    `json:"index"`
	Expiry           string    `json:"expiry"`
	Current          Severity  `json:"current"`
	Streak           int       `json:"streak"`
	IdleCycles       int       `json:"idle_cycles"`
	IdleStartRank    int       `json:"idle_start_rank"`
	LastChangeCycle  int64     `json:"last_change_cycle"`
	ActiveSinceCycle int64     `json:"active_since_cycle"`
}
