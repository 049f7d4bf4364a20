package adaptive

import (
	"sync"

	"github.com/aristath/g6/internal/domain"
)

// Config tunes the controller's demote/promote behavior (spec §4.4).
type Config struct {
	MaxSLABreachStreak int
	MinHealthCycles    int
	DemoteCooldown     int64
	PromoteCooldown    int64
	MinDetailMode      domain.DetailMode
	MaxDetailMode      domain.DetailMode

	SeverityFeedbackEnabled bool
	ConfiguredSeverityTypes []domain.AlertType
}

// Signals is this cycle's pressure snapshot for one index (spec §4.4).
type Signals struct {
	SLABreachStreak        int
	MemoryTier              int
	CardinalityGuardActive bool
	SeverityState           map[domain.AlertType]domain.Severity
}

// Decision is the outcome of one Decide call.
type Decision struct {
	Mode   domain.DetailMode
	Action string // "demote", "promote", "hold"
	Reason string
}

type indexState struct {
	mode               domain.DetailMode
	lastTransitionCycle int64
	healthyStreak       int
}

// Controller tracks detail-mode state per index and applies the §4.4
// decision rules in order: demote, block-promotion-while-warn, promote,
// cooldown, clamp.
type Controller struct {
	cfg Config

	mu    sync.Mutex
	state map[string]*indexState
}

// NewController builds a Controller; all indices start at MinDetailMode
// (the most detailed permitted mode, typically "full") until pressure
// demotes them.
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg, state: make(map[string]*indexState)}
}

// Decide applies this cycle's signals for index and returns the detail
// mode to use for the NEXT cycle.
func (c *Controller) Decide(cycle int64, index string, sig Signals) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.state[index]
	if !ok {
		s = &indexState{mode: c.cfg.MinDetailMode}
		c.state[index] = s
	}

	pressure, reason := c.pressureReason(sig)
	blockedByWarn := c.anyConfiguredTypeAtWarn(sig)

	switch {
	case pressure:
		s.healthyStreak = 0
		if c.cooldownElapsed(cycle, s, c.cfg.DemoteCooldown) && s.mode < c.cfg.MaxDetailMode {
			s.mode++
			s.lastTransitionCycle = cycle
			s.mode = s.mode.Clamp(c.cfg.MinDetailMode, c.cfg.MaxDetailMode)
			return Decision{Mode: s.mode, Action: "demote", Reason: reason}
		}
		s.mode = s.mode.Clamp(c.cfg.MinDetailMode, c.cfg.MaxDetailMode)
		return Decision{Mode: s.mode, Action: "hold", Reason: reason}

	case blockedByWarn:
		s.healthyStreak = 0
		s.mode = s.mode.Clamp(c.cfg.MinDetailMode, c.cfg.MaxDetailMode)
		return Decision{Mode: s.mode, Action: "hold", Reason: "blocked_by_warn"}

	default:
		s.healthyStreak++
		minHealth := c.cfg.MinHealthCycles
		if minHealth <= 0 {
			minHealth = 1
		}
		if s.healthyStreak >= minHealth && c.cooldownElapsed(cycle, s, c.cfg.PromoteCooldown) && s.mode > c.cfg.MinDetailMode {
			s.mode--
			s.lastTransitionCycle = cycle
			s.healthyStreak = 0
			s.mode = s.mode.Clamp(c.cfg.MinDetailMode, c.cfg.MaxDetailMode)
			return Decision{Mode: s.mode, Action: "promote", Reason: "healthy_recovery"}
		}
		s.mode = s.mode.Clamp(c.cfg.MinDetailMode, c.cfg.MaxDetailMode)
		return Decision{Mode: s.mode, Action: "hold", Reason: "healthy"}
	}
}

func (c *Controller) pressureReason(sig Signals) (bool, string) {
	if c.cfg.MaxSLABreachStreak > 0 && sig.SLABreachStreak >= c.cfg.MaxSLABreachStreak {
		return true, "sla_breach_streak"
	}
	if sig.MemoryTier >= 2 {
		return true, "memory_tier"
	}
	if sig.CardinalityGuardActive {
		return true, "cardinality_guard"
	}
	if c.cfg.SeverityFeedbackEnabled {
		for _, t := range c.cfg.ConfiguredSeverityTypes {
			if sig.SeverityState[t] == domain.SeverityCritical {
				return true, "severity_critical"
			}
		}
	}
	return false, ""
}

func (c *Controller) anyConfiguredTypeAtWarn(sig Signals) bool {
	for _, t := range c.cfg.ConfiguredSeverityTypes {
		if sig.SeverityState[t] == domain.SeverityWarn {
			return true
		}
	}
	return false
}

func (c *Controller) cooldownElapsed(cycle int64, s *indexState, cooldown int64) bool {
	if cooldown <= 0 || s.lastTransitionCycle == 0 {
		return true
	}
	return cycle-s.lastTransitionCycle >= cooldown
}

// ModeFor returns the current detail mode for index without mutating
// state, defaulting to MinDetailMode for indices not yet observed.
func (c *Controller) ModeFor(index string) domain.DetailMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.state[index]; ok {
		return s.mode
	}
	return c.cfg.MinDetailMode
}
