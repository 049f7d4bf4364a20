// Package alerts implements alert-condition detection over per-index
// pipeline results and the severity state machine that turns repeated
// triggers into info/warn/critical alerts (spec §4.5).
package alerts

import (
	"github.com/aristath/g6/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// TypeConfig tunes promotion/decay behavior for one alert type (spec §4.5).
type TypeConfig struct {
	WarnThreshold     float64
	CriticalThreshold float64 // 0 disables promotion to critical
	HigherIsWorse     bool    // true: trigger when metric >= threshold; false: metric <= threshold

	MinStreak       int
	DecayCycles     int // 0 disables decay
	PromoteCooldown int64
	ForceFloor      domain.Severity
	CriticalDemote  bool // member of critical_demote_types

	TrendSmooth         float64 // (0,1]; 0 disables trend extension
	TrendWindow         int     // rolling window size for the smoothed metric
	TrendWarnRatio      float64
	TrendCriticalRatio  float64
}

type scopeKey struct {
	alertType domain.AlertType
	index     string
	expiry    string
}

type stateEntry struct {
	current          domain.Severity
	streak           int
	idleCycles       int
	idleStartRank    int
	lastChangeCycle  int64
	activeSinceCycle int64
	trendWindow      []float64
}

// SeverityStateMachine tracks severity per (alert type, index, expiry)
// scope across cycles (spec §4.5).
type SeverityStateMachine struct {
	configs map[domain.AlertType]TypeConfig
	states  map[scopeKey]*stateEntry
}

// NewSeverityStateMachine builds a state machine with per-type configs.
func NewSeverityStateMachine(configs map[domain.AlertType]TypeConfig) *SeverityStateMachine {
	return &SeverityStateMachine{
		configs: configs,
		states:  make(map[scopeKey]*stateEntry),
	}
}

// Observe feeds one cycle's trigger/metric reading for (type, index, expiry)
// and returns the resulting Alert (severity may be unchanged from the
// prior cycle; Resolved is true exactly once on the cycle a downgrade
// reaches info from an elevated severity).
func (m *SeverityStateMachine) Observe(cycle int64, alertType domain.AlertType, index, expiry string, triggered bool, metric float64) domain.Alert {
	cfg := m.configs[alertType]
	key := scopeKey{alertType: alertType, index: index, expiry: expiry}

	s, ok := m.states[key]
	if !ok {
		s = &stateEntry{current: domain.SeverityInfo}
		m.states[key] = s
	}

	if triggered {
		s.streak++
		s.idleCycles = 0
	} else {
		s.streak = 0
		if s.idleCycles == 0 {
			s.idleStartRank = s.current.Rank()
		}
		s.idleCycles++
	}

	observed := metric
	if cfg.TrendSmooth > 0 {
		observed = s.smoothedMetric(metric, cfg)
	}

	resolved := false
	prev := s.current

	if triggered && s.streak >= max1(cfg.MinStreak) && m.cooldownElapsed(cycle, s, cfg) {
		target := m.promotionTarget(observed, cfg, s.current)
		if target.Rank() > s.current.Rank() {
			s.current = target
			s.lastChangeCycle = cycle
			if prev.Rank() == 0 {
				s.activeSinceCycle = cycle
			}
		}
	} else if !triggered && cfg.DecayCycles > 0 && s.idleCycles >= cfg.DecayCycles {
		if cfg.CriticalDemote && s.current == domain.SeverityCritical && recoveredStrongly(observed, cfg) {
			s.current = domain.SeverityInfo
		} else {
			// Steps already owed since the idle episode started, measured
			// from idleStartRank rather than the live (already-demoted)
			// severity, so a second step only lands after another full
			// DecayCycles of idleness, per spec §4.5's "k x decay_cycles".
			steps := s.idleCycles / cfg.DecayCycles
			targetRank := s.idleStartRank - steps
			if targetRank < 0 {
				targetRank = 0
			}
			s.current = domain.SeverityFromRank(targetRank)
		}
		if s.current != prev {
			s.lastChangeCycle = cycle
		}
		if prev.Rank() > 0 && s.current == domain.SeverityInfo {
			resolved = true
		}
	}

	if cfg.ForceFloor != "" && s.current.Rank() < cfg.ForceFloor.Rank() {
		s.current = cfg.ForceFloor
	}

	return domain.Alert{
		Type:             alertType,
		Index:            index,
		Expiry:           expiry,
		Streak:           s.streak,
		Severity:         s.current,
		ActiveSinceCycle: s.activeSinceCycle,
		LastChangeCycle:  s.lastChangeCycle,
		Resolved:         resolved,
	}
}

func (s *stateEntry) smoothedMetric(metric float64, cfg TypeConfig) float64 {
	window := cfg.TrendWindow
	if window <= 0 {
		window = 10
	}
	s.trendWindow = append(s.trendWindow, metric)
	if len(s.trendWindow) > window {
		s.trendWindow = s.trendWindow[len(s.trendWindow)-window:]
	}
	return stat.Mean(s.trendWindow, nil)
}

func (m *SeverityStateMachine) cooldownElapsed(cycle int64, s *stateEntry, cfg TypeConfig) bool {
	if cfg.PromoteCooldown <= 0 {
		return true
	}
	return cycle-s.lastChangeCycle >= cfg.PromoteCooldown
}

func (m *SeverityStateMachine) promotionTarget(observed float64, cfg TypeConfig, current domain.Severity) domain.Severity {
	crossesCritical := cfg.CriticalThreshold != 0 && crosses(observed, cfg.CriticalThreshold, cfg.HigherIsWorse)
	crossesWarn := crosses(observed, cfg.WarnThreshold, cfg.HigherIsWorse)

	switch {
	case crossesCritical:
		return domain.SeverityCritical
	case crossesWarn:
		if current == domain.SeverityInfo {
			return domain.SeverityWarn
		}
		return current
	default:
		return current
	}
}

func crosses(observed, threshold float64, higherIsWorse bool) bool {
	if higherIsWorse {
		return observed >= threshold
	}
	return observed <= threshold
}

func recoveredStrongly(observed float64, cfg TypeConfig) bool {
	if cfg.HigherIsWorse {
		return observed < cfg.WarnThreshold*0.5
	}
	return observed > cfg.WarnThreshold*1.5
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// Snapshot exports every tracked (type, index, expiry) scope's streak
// state for persistence under alerts_state_dir. The rolling trend
// window is intentionally not persisted — it is a short smoothing
// buffer that rebuilds itself within TrendWindow cycles of restart.
func (m *SeverityStateMachine) Snapshot() []domain.AlertStreakState {
	out := make([]domain.AlertStreakState, 0, len(m.states))
	for key, s := range m.states {
		out = append(out, domain.AlertStreakState{
			AlertType:        key.alertType,
			Index:            key.index,
			Expiry:           key.expiry,
			Current:          s.current,
			Streak:           s.streak,
			IdleCycles:       s.idleCycles,
			IdleStartRank:    s.idleStartRank,
			LastChangeCycle:  s.lastChangeCycle,
			ActiveSinceCycle: s.activeSinceCycle,
		})
	}
	return out
}

// Restore reinstates previously persisted streak state, replacing
// whatever is currently tracked for each scope.
func (m *SeverityStateMachine) Restore(states []domain.AlertStreakState) {
	for _, st := range states {
		key := scopeKey{alertType: st.AlertType, index: st.Index, expiry: st.Expiry}
		m.states[key] = &stateEntry{
			current:          st.Current,
			streak:           st.Streak,
			idleCycles:       st.IdleCycles,
			idleStartRank:    st.IdleStartRank,
			lastChangeCycle:  st.LastChangeCycle,
			activeSinceCycle: st.ActiveSinceCycle,
		}
	}
}
