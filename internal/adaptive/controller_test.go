package adaptive

import (
	"testing"

	"github.com/aristath/g6/internal/domain"
	"github.com/stretchr/testify/assert"
)

func baseConfig() Config {
	return Config{
		MaxSLABreachStreak: 3,
		MinHealthCycles:    2,
		MinDetailMode:      domain.DetailFull,
		MaxDetailMode:      domain.DetailAgg,
	}
}

func TestDecideDemotesOnSLABreach(t *testing.T) {
	c := NewController(baseConfig())
	d := c.Decide(1, "NIFTY", Signals{SLABreachStreak: 3})
	assert.Equal(t, "demote", d.Action)
	assert.Equal(t, domain.DetailBand, d.Mode)
}

func TestDecideDemotesOnMemoryPressure(t *testing.T) {
	c := NewController(baseConfig())
	d := c.Decide(1, "NIFTY", Signals{MemoryTier: 2})
	assert.Equal(t, "demote", d.Action)
}

func TestDecideHoldsWhileBlockedByWarn(t *testing.T) {
	cfg := baseConfig()
	cfg.ConfiguredSeverityTypes = []domain.AlertType{domain.AlertLowStrikeCoverage}
	c := NewController(cfg)

	sig := Signals{SeverityState: map[domain.AlertType]domain.Severity{domain.AlertLowStrikeCoverage: domain.SeverityWarn}}
	d := c.Decide(1, "NIFTY", sig)
	assert.Equal(t, "hold", d.Action)
	assert.Equal(t, "blocked_by_warn", d.Reason)
}

func TestDecidePromotesAfterHealthyStreak(t *testing.T) {
	c := NewController(baseConfig())
	c.Decide(1, "NIFTY", Signals{SLABreachStreak: 3}) // demote to band

	c.Decide(2, "NIFTY", Signals{})
	d := c.Decide(3, "NIFTY", Signals{}) // 2 healthy cycles -> promote
	assert.Equal(t, "promote", d.Action)
	assert.Equal(t, domain.DetailFull, d.Mode)
}

func TestDecideRespectsDemoteCooldown(t *testing.T) {
	cfg := baseConfig()
	cfg.DemoteCooldown = 5
	c := NewController(cfg)

	c.Decide(1, "NIFTY", Signals{SLABreachStreak: 3})
	d := c.Decide(2, "NIFTY", Signals{SLABreachStreak: 3})
	assert.Equal(t, "hold", d.Action, "second demote blocked by cooldown")
}

func TestDecideSeverityFeedbackDemotesOnCritical(t *testing.T) {
	cfg := baseConfig()
	cfg.SeverityFeedbackEnabled = true
	cfg.ConfiguredSeverityTypes = []domain.AlertType{domain.AlertLowStrikeCoverage}
	c := NewController(cfg)

	sig := Signals{SeverityState: map[domain.AlertType]domain.Severity{domain.AlertLowStrikeCoverage: domain.SeverityCritical}}
	d := c.Decide(1, "NIFTY", sig)
	assert.Equal(t, "demote", d.Action)
	assert.Equal(t, "severity_critical", d.Reason)
}

func TestModeForDefaultsToMinDetailMode(t *testing.T) {
	c := NewController(baseConfig())
	assert.Equal(t, domain.DetailFull, c.ModeFor("UNKNOWN"))
}
