package metrics

import (
	"sync"
	"time"
)

// CardinalityGuard demotes detail mode when the number of active
// per-option time series grows too large (spec §4.7): it disables
// per-option emission for at least minDisableDuration once activeSeries
// exceeds maxSeries, and re-enables only once series fall below
// reenableFraction*maxSeries AND the minimum disable duration elapsed.
type CardinalityGuard struct {
	mu sync.Mutex

	maxSeries         int
	minDisableDuration time.Duration
	reenableFraction  float64

	disabled   bool
	disabledAt time.Time
	now        func() time.Time
}

// NewCardinalityGuard builds a guard. reenableFraction is typically <1
// (e.g. 0.8) to avoid flapping right at the threshold.
func NewCardinalityGuard(maxSeries int, minDisableDuration time.Duration, reenableFraction float64) *CardinalityGuard {
	return &CardinalityGuard{
		maxSeries:          maxSeries,
		minDisableDuration: minDisableDuration,
		reenableFraction:   reenableFraction,
		now:                time.Now,
	}
}

// Observe records the current active-series count and returns whether
// per-option metric emission should stay/become disabled (the caller
// feeds this into adaptive.Signals.CardinalityGuardActive).
func (g *CardinalityGuard) Observe(activeSeries int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.disabled {
		if g.maxSeries > 0 && activeSeries > g.maxSeries {
			g.disabled = true
			g.disabledAt = now
		}
		return g.disabled
	}

	elapsed := now.Sub(g.disabledAt)
	reenableThreshold := g.reenableFraction * float64(g.maxSeries)
	if elapsed >= g.minDisableDuration && float64(activeSeries) < reenableThreshold {
		g.disabled = false
	}
	return g.disabled
}

// Disabled reports the guard's current state without recording a new
// observation.
func (g *CardinalityGuard) Disabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disabled
}
