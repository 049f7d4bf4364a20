package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aristath/g6/internal/adaptive"
	"github.com/aristath/g6/internal/alerts"
	"github.com/aristath/g6/internal/backup"
	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/events"
	"github.com/aristath/g6/internal/metrics"
	"github.com/aristath/g6/internal/panels"
	"github.com/aristath/g6/internal/provider"
	"github.com/aristath/g6/internal/scheduler"
	"github.com/aristath/g6/internal/sse"
	"github.com/aristath/g6/internal/state"
)

// cycleReporter turns one scheduler.CycleReport into panel updates, bus
// events, alert evaluation, adaptive detail-mode decisions, metric
// observations, and periodic state/analytics persistence. It is the
// glue the teacher's main.go would otherwise inline directly into the
// collection loop; kept as its own type here because it fans out to
// every downstream package.
type cycleReporter struct {
	aggregator  *alerts.Aggregator
	severity    *alerts.SeverityStateMachine
	adaptiveCtl *adaptive.Controller
	panels      *panels.Registry
	writer      *panels.Writer
	bus         *events.Bus
	publisher   *sse.Publisher
	families    *metrics.Families
	cardinality *metrics.CardinalityGuard
	exporter    *backup.Exporter
	store       state.Store
	prov        *provider.Composite
	promReg     *prometheus.Registry
	log         zerolog.Logger

	slaBreachStreak int // consecutive cycles with report.SLABreached
}

func (c *cycleReporter) onCycle(ctx context.Context, cycle int64, report *scheduler.CycleReport) {
	if report.SkippedMarketClosed {
		return
	}

	activeSeries := countSeries(c.promReg)
	cardinalityActive := c.cardinality.Observe(activeSeries)
	c.families.SeriesActive.Set(float64(activeSeries))

	analytics := make(map[string]interface{}, len(report.Results))

	if report.SLABreached {
		c.slaBreachStreak++
	} else {
		c.slaBreachStreak = 0
	}

	for _, result := range report.Results {
		cycleAlerts := c.aggregator.Aggregate(cycle, result)
		for _, a := range cycleAlerts {
			c.families.AlertSeverity.WithLabelValues(string(a.Type), a.Index, a.Expiry).Set(float64(a.Severity.Rank()))
		}

		sig := adaptive.Signals{
			SLABreachStreak:        c.slaBreachStreak,
			CardinalityGuardActive: cardinalityActive,
			SeverityState:          severityByType(cycleAlerts),
		}
		decision := c.adaptiveCtl.Decide(cycle, result.Index, sig)
		c.families.AdaptiveDetailMode.WithLabelValues(result.Index).Set(float64(decision.Mode))

		panelName := "index." + result.Index
		panel, err := c.panels.Set(panelName, "pipeline", "index-result-v1", result, report.Now)
		if err == nil {
			c.bus.Publish(events.TypePanelUpdate, panelName, panel)
			if err := c.writer.Write(panel); err != nil {
				c.log.Warn().Err(err).Str("panel", panelName).Msg("write panel")
			}
		}

		analytics[result.Index] = map[string]interface{}{
			"spot_price":     result.SpotPrice,
			"expiries":       len(result.Expiries),
			"unresolved_tags": result.UnresolvedTags,
		}
	}

	c.publisher.SetCycle(cycle)
	c.publisher.MaybeForceFullSnapshot()

	if _, err := c.exporter.Export(ctx, cycle, analytics); err != nil {
		c.log.Warn().Err(err).Msg("export analytics snapshot")
	}

	c.persistState()
}

func (c *cycleReporter) persistState() {
	if err := c.store.SaveCircuitStates(c.prov.CircuitStates()); err != nil {
		c.log.Warn().Err(err).Msg("persist circuit states")
	}
	if err := c.store.SaveRateLimiterStates(c.prov.RateLimiterStates()); err != nil {
		c.log.Warn().Err(err).Msg("persist rate limiter states")
	}
	if err := c.store.SaveAlertStreaks(c.severity.Snapshot()); err != nil {
		c.log.Warn().Err(err).Msg("persist alert streaks")
	}
}

// persistFinal is called once more during graceful shutdown so the
// last cycle's resilience/alert state survives the process exit.
func (c *cycleReporter) persistFinal() {
	c.persistState()
}

func countSeries(reg *prometheus.Registry) int {
	metricFamilies, err := reg.Gather()
	if err != nil {
		return 0
	}
	total := 0
	for _, mf := range metricFamilies {
		total += len(mf.GetMetric())
	}
	return total
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func severityByType(cycleAlerts []domain.Alert) map[domain.AlertType]domain.Severity {
	out := make(map[domain.AlertType]domain.Severity, len(cycleAlerts))
	for _, a := range cycleAlerts {
		out[a.Type] = a.Severity
	}
	return out
}

