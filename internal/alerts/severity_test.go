package alerts

import (
	"testing"

	"github.com/aristath/g6/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotAndRestoreRoundTripStreakState(t *testing.T) {
	cfg := map[domain.AlertType]TypeConfig{
		domain.AlertLowStrikeCoverage: {WarnThreshold: 0.5, CriticalThreshold: 0.8, HigherIsWorse: true, MinStreak: 2},
	}
	m := NewSeverityStateMachine(cfg)
	m.Observe(1, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.6)
	m.Observe(2, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.6)

	snap := m.Snapshot()
	assert.Len(t, snap, 1)
	assert.Equal(t, domain.SeverityWarn, snap[0].Current)

	restored := NewSeverityStateMachine(cfg)
	restored.Restore(snap)

	a := restored.Observe(3, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.6)
	assert.Equal(t, domain.SeverityWarn, a.Severity, "restored streak keeps its promoted severity")
}

func TestObservePromotesToWarnAfterMinStreak(t *testing.T) {
	cfg := map[domain.AlertType]TypeConfig{
		domain.AlertLowStrikeCoverage: {WarnThreshold: 0.5, CriticalThreshold: 0.8, HigherIsWorse: true, MinStreak: 2},
	}
	m := NewSeverityStateMachine(cfg)

	a := m.Observe(1, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.6)
	assert.Equal(t, domain.SeverityInfo, a.Severity, "first trigger below min_streak stays info")

	a = m.Observe(2, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.6)
	assert.Equal(t, domain.SeverityWarn, a.Severity)
}

func TestObservePromotesToCriticalAboveCriticalThreshold(t *testing.T) {
	cfg := map[domain.AlertType]TypeConfig{
		domain.AlertLowStrikeCoverage: {WarnThreshold: 0.3, CriticalThreshold: 0.9, HigherIsWorse: true, MinStreak: 1},
	}
	m := NewSeverityStateMachine(cfg)
	a := m.Observe(1, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.95)
	assert.Equal(t, domain.SeverityCritical, a.Severity)
}

func TestObserveDecaysAfterIdleCycles(t *testing.T) {
	cfg := map[domain.AlertType]TypeConfig{
		domain.AlertLowStrikeCoverage: {WarnThreshold: 0.3, CriticalThreshold: 0.9, HigherIsWorse: true, MinStreak: 1, DecayCycles: 2},
	}
	m := NewSeverityStateMachine(cfg)
	m.Observe(1, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.95) // -> critical

	m.Observe(2, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0)
	a := m.Observe(3, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0) // 2 idle cycles -> one decay step
	assert.Equal(t, domain.SeverityWarn, a.Severity)
}

// TestObserveDecaysOneStepPerFullDecayCyclesWindow covers spec §4.5's
// "multi-step if idle_cycles >= k x decay_cycles": each further step
// must wait another full DecayCycles of idleness measured from the
// start of the idle episode, not from the already-demoted severity.
func TestObserveDecaysOneStepPerFullDecayCyclesWindow(t *testing.T) {
	cfg := map[domain.AlertType]TypeConfig{
		domain.AlertLowStrikeCoverage: {WarnThreshold: 0.3, CriticalThreshold: 0.9, HigherIsWorse: true, MinStreak: 1, DecayCycles: 3},
	}
	m := NewSeverityStateMachine(cfg)
	m.Observe(1, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.95) // -> critical

	m.Observe(2, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0)
	a := m.Observe(3, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0) // idle=2
	assert.Equal(t, domain.SeverityCritical, a.Severity, "idle cycles below decay_cycles must not decay yet")

	a = m.Observe(4, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0) // idle=3 -> 1x3, one step
	assert.Equal(t, domain.SeverityWarn, a.Severity)

	a = m.Observe(5, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0) // idle=4
	assert.Equal(t, domain.SeverityWarn, a.Severity, "second step must wait a full second decay_cycles window")

	a = m.Observe(6, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0) // idle=5
	assert.Equal(t, domain.SeverityWarn, a.Severity)

	a = m.Observe(7, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0) // idle=6 -> 2x3, second step
	assert.Equal(t, domain.SeverityInfo, a.Severity)
}

func TestObserveResolvedFiresOnceReachingInfo(t *testing.T) {
	cfg := map[domain.AlertType]TypeConfig{
		domain.AlertLowStrikeCoverage: {WarnThreshold: 0.3, HigherIsWorse: true, MinStreak: 1, DecayCycles: 1},
	}
	m := NewSeverityStateMachine(cfg)
	m.Observe(1, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.5) // -> warn

	a := m.Observe(2, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0)
	assert.Equal(t, domain.SeverityInfo, a.Severity)
	assert.True(t, a.Resolved)

	a = m.Observe(3, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0)
	assert.False(t, a.Resolved, "resolved should only fire once")
}

func TestForceFloorPreventsDemoteBelowFloor(t *testing.T) {
	cfg := map[domain.AlertType]TypeConfig{
		domain.AlertLowStrikeCoverage: {WarnThreshold: 0.3, HigherIsWorse: true, MinStreak: 1, DecayCycles: 1, ForceFloor: domain.SeverityWarn},
	}
	m := NewSeverityStateMachine(cfg)
	m.Observe(1, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.5)
	a := m.Observe(2, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0)
	assert.Equal(t, domain.SeverityWarn, a.Severity)
}

func TestCriticalDemoteBypassGoesDirectlyToInfo(t *testing.T) {
	cfg := map[domain.AlertType]TypeConfig{
		domain.AlertLowStrikeCoverage: {WarnThreshold: 0.3, CriticalThreshold: 0.9, HigherIsWorse: true, MinStreak: 1, DecayCycles: 1, CriticalDemote: true},
	}
	m := NewSeverityStateMachine(cfg)
	m.Observe(1, domain.AlertLowStrikeCoverage, "NIFTY", "e1", true, 0.95) // -> critical
	a := m.Observe(2, domain.AlertLowStrikeCoverage, "NIFTY", "e1", false, 0.1)
	assert.Equal(t, domain.SeverityInfo, a.Severity)
}
