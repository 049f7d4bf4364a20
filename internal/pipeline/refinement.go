package pipeline

import (
	"sync"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/strikes"
)

type refinementKey struct {
	index string
	tag   domain.ExpiryTag
}

type refinementStreaks struct {
	breachStreak  int
	healthyStreak int
}

// RefinementTracker implements the adaptive strike-depth refinement rule
// in spec §4.2f: on StrikeBreachThreshold consecutive low-coverage cycles,
// shrink a (index, expiry tag)'s policy by StrikeReduction floored at
// StrikeMinDepth; restore one step per StrikeRestoreHealthy healthy
// cycles. State lives here rather than in the AdaptiveController, which
// owns the orthogonal detail-mode decision (spec §4.4).
type RefinementTracker struct {
	mu        sync.Mutex
	streaks   map[refinementKey]*refinementStreaks
	basePolicy map[refinementKey]strikes.Policy
}

// NewRefinementTracker creates an empty tracker.
func NewRefinementTracker() *RefinementTracker {
	return &RefinementTracker{
		streaks:    make(map[refinementKey]*refinementStreaks),
		basePolicy: make(map[refinementKey]strikes.Policy),
	}
}

// PolicyFor returns the currently active policy for (index, tag), given
// the index's configured (base) depth. The base is recorded on first use
// so Restore has a ceiling to climb back to.
func (t *RefinementTracker) PolicyFor(index string, tag domain.ExpiryTag, base strikes.Policy) strikes.Policy {
	key := refinementKey{index: index, tag: tag}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.basePolicy[key]; !ok {
		t.basePolicy[key] = base
	}
	if _, ok := t.streaks[key]; !ok {
		t.streaks[key] = &refinementStreaks{}
	}
	return base
}

// Observe records this cycle's coverage outcome and returns the policy
// to use on the NEXT cycle for (index, tag) — reduced, restored, or
// unchanged relative to current.
func (t *RefinementTracker) Observe(index string, tag domain.ExpiryTag, current strikes.Policy, strikeCoverage float64, th Thresholds) strikes.Policy {
	key := refinementKey{index: index, tag: tag}

	t.mu.Lock()
	defer t.mu.Unlock()

	base, ok := t.basePolicy[key]
	if !ok {
		base = current
		t.basePolicy[key] = base
	}
	s, ok := t.streaks[key]
	if !ok {
		s = &refinementStreaks{}
		t.streaks[key] = s
	}

	if strikeCoverage < th.StrikeCoverageOK {
		s.breachStreak++
		s.healthyStreak = 0
		if s.breachStreak >= th.StrikeBreachThreshold {
			s.breachStreak = 0
			reduced := current
			reduced.MinDepth = th.StrikeMinDepth
			return reduced.Reduce(th.StrikeReduction)
		}
		return current
	}

	s.breachStreak = 0
	s.healthyStreak++
	if s.healthyStreak >= th.StrikeRestoreHealthy {
		s.healthyStreak = 0
		return current.Restore(base)
	}
	return current
}
