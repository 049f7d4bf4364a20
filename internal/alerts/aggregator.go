package alerts

import (
	"sort"
	"sync"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/pipeline"
)

// AggregatorConfig carries the per-option heuristics that don't fit the
// generic TypeConfig threshold shape (spec §4.5 liquidity/spread/stale
// quote alerts operate per-row, not per-expiry-metric).
type AggregatorConfig struct {
	StrikeCovMin     float64
	FieldCovMin      float64
	LiquidityMinVol  int64
	WideSpreadFrac   float64
	StaleQuoteMaxAge float64 // seconds
	BucketUtilMin    float64
	RiskDeltaDriftPct float64
}

// Aggregator derives alert triggers from one cycle's per-index pipeline
// results and feeds them through the SeverityStateMachine, producing the
// final Alert list for the cycle (spec §4.2 stage 3, §4.5).
type Aggregator struct {
	cfg     AggregatorConfig
	machine *SeverityStateMachine

	mu               sync.Mutex
	lastDeltaNotional map[scopeKey]float64
}

// NewAggregator builds an Aggregator over the given severity state machine.
func NewAggregator(cfg AggregatorConfig, machine *SeverityStateMachine) *Aggregator {
	return &Aggregator{cfg: cfg, machine: machine, lastDeltaNotional: make(map[scopeKey]float64)}
}

// Aggregate derives and returns this cycle's alerts for one index's
// result, returned sorted alphabetically by alert type for
// deterministic tie-breaking among simultaneous promotions (spec §4.5).
func (a *Aggregator) Aggregate(cycle int64, result *pipeline.IndexResult) []domain.Alert {
	var alerts []domain.Alert

	indexFailed := result.SpotErr != nil || (len(result.Expiries) == 0 && len(result.UnresolvedTags) > 0)
	alerts = append(alerts, a.machine.Observe(cycle, domain.AlertIndexFailure, result.Index, "", indexFailed, boolMetric(indexFailed)))

	for _, snap := range result.Expiries {
		alerts = append(alerts, a.aggregateExpiry(cycle, result.Index, snap)...)
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].Type < alerts[j].Type })
	return alerts
}

func (a *Aggregator) aggregateExpiry(cycle int64, index string, snap *domain.ExpirySnapshot) []domain.Alert {
	var out []domain.Alert

	empty := snap.Status == domain.StatusEmpty
	out = append(out, a.machine.Observe(cycle, domain.AlertExpiryEmpty, index, snap.ExpiryDate, empty, boolMetric(empty)))

	lowStrike := snap.StrikeCoverage < a.cfg.StrikeCovMin
	lowField := snap.FieldCoverage < a.cfg.FieldCovMin
	out = append(out, a.machine.Observe(cycle, domain.AlertLowStrikeCoverage, index, snap.ExpiryDate, lowStrike, 1-snap.StrikeCoverage))
	out = append(out, a.machine.Observe(cycle, domain.AlertLowFieldCoverage, index, snap.ExpiryDate, lowField, 1-snap.FieldCoverage))
	out = append(out, a.machine.Observe(cycle, domain.AlertLowBothCoverage, index, snap.ExpiryDate, lowStrike && lowField, 1-(snap.StrikeCoverage+snap.FieldCoverage)/2))

	interpolated := 0
	lowLiquidity, wideSpread, stale := false, false, false
	deltaNotional := 0.0
	for _, opt := range snap.Options {
		if opt.Interpolated {
			interpolated++
		}
		if opt.Quote.Volume < a.cfg.LiquidityMinVol {
			lowLiquidity = true
		}
		if opt.SpreadFraction > a.cfg.WideSpreadFrac {
			wideSpread = true
		}
		if opt.StaleAgeSecs > a.cfg.StaleQuoteMaxAge {
			stale = true
		}
		deltaNotional += opt.DeltaNotional
	}
	interpFrac := 0.0
	if len(snap.Options) > 0 {
		interpFrac = float64(interpolated) / float64(len(snap.Options))
	}
	out = append(out, a.machine.Observe(cycle, domain.AlertInterpolationHigh, index, snap.ExpiryDate, interpFrac > 0, interpFrac))
	out = append(out, a.machine.Observe(cycle, domain.AlertLiquidityLow, index, snap.ExpiryDate, lowLiquidity, boolMetric(lowLiquidity)))
	out = append(out, a.machine.Observe(cycle, domain.AlertWideSpread, index, snap.ExpiryDate, wideSpread, boolMetric(wideSpread)))
	out = append(out, a.machine.Observe(cycle, domain.AlertStaleQuote, index, snap.ExpiryDate, stale, boolMetric(stale)))

	bucketUtil := 0.0
	if snap.RequestedStrikes > 0 {
		bucketUtil = float64(snap.RealizedStrikes) / float64(snap.RequestedStrikes)
	}
	lowBucketUtil := bucketUtil < a.cfg.BucketUtilMin
	out = append(out, a.machine.Observe(cycle, domain.AlertBucketUtilLow, index, snap.ExpiryDate, lowBucketUtil, 1-bucketUtil))

	driftFrac, hasPrior := a.deltaDrift(index, snap.ExpiryDate, deltaNotional)
	riskDrift := hasPrior && absFloat(driftFrac) >= a.cfg.RiskDeltaDriftPct
	out = append(out, a.machine.Observe(cycle, domain.AlertRiskDeltaDrift, index, snap.ExpiryDate, riskDrift, absFloat(driftFrac)))

	return out
}

// deltaDrift returns the fractional change in aggregate delta notional
// since the last cycle for (index, expiry), tracked here rather than in
// the severity machine since it needs the raw prior value, not just a
// trigger bit (spec §4.5 risk_delta_drift).
func (a *Aggregator) deltaDrift(index, expiry string, current float64) (float64, bool) {
	key := scopeKey{alertType: domain.AlertRiskDeltaDrift, index: index, expiry: expiry}

	a.mu.Lock()
	defer a.mu.Unlock()

	prev, ok := a.lastDeltaNotional[key]
	a.lastDeltaNotional[key] = current
	if !ok || prev == 0 {
		return 0, false
	}
	return (current - prev) / prev, true
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
