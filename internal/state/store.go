// Package state persists the process's resilience and alerting state
// across restarts (spec §6 "Persisted state"): circuit-breaker JSON
// files under state_dir, alert streak/suppression metadata under
// alerts_state_dir. FileStore is the mandated plain-JSON
// implementation; SQLiteStore is an optional embedded-DB alternative
// for deployments that prefer one file over many.
package state

import "github.com/aristath/g6/internal/domain"

// Store persists the three kinds of state the spec calls out:
// per-provider circuit-breaker state, per-provider rate-limiter state,
// and per-(type,index,expiry) alert streaks.
type Store interface {
	SaveCircuitStates(states map[string]domain.CircuitState) error
	LoadCircuitStates() (map[string]domain.CircuitState, error)

	SaveRateLimiterStates(states map[string]domain.RateLimiterState) error
	LoadRateLimiterStates() (map[string]domain.RateLimiterState, error)

	SaveAlertStreaks(streaks []domain.AlertStreakState) error
	LoadAlertStreaks() ([]domain.AlertStreakState, error)
}
