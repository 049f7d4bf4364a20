package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metric group names, used with Registry.Register and the
// enable_groups/disable_groups env lists (spec §4.7).
const (
	GroupScheduler    = "scheduler"
	GroupPipeline     = "pipeline"
	GroupProvider     = "provider"
	GroupAdaptive     = "adaptive_controller"
	GroupAlerts       = "alerts"
	GroupPanels       = "panels_integrity"
	GroupSSE          = "sse_ingest"
	GroupCache        = "cache"
	GroupAnalyticsVol = "analytics_vol_surface"
)

// Families holds every g6_-prefixed metric family. All metric names
// are prefixed g6_, counters end _total, timestamp gauges end
// _unixtime (spec §6).
type Families struct {
	CycleSLABreachTotal     prometheus.Counter
	DataGapSeconds          prometheus.Gauge
	LastSuccessCycleUnixtime prometheus.Gauge
	CyclesTotal             prometheus.Counter
	MissingCyclesTotal      prometheus.Counter
	CycleBudgetSkipsTotal   prometheus.Counter

	IndexFailureTotal           *prometheus.CounterVec
	ParallelIndexTimeoutsTotal  *prometheus.CounterVec

	EventsDroppedTotal     *prometheus.CounterVec
	EventsForcedFullTotal  *prometheus.CounterVec
	PanelUpdatesTotal      prometheus.Counter

	CacheHitTotal  prometheus.Counter
	CacheMissTotal prometheus.Counter

	ProviderCircuitOpenTotal       *prometheus.CounterVec
	ProviderRateLimitCooldownTotal *prometheus.CounterVec

	AdaptiveDetailMode *prometheus.GaugeVec
	SeriesActive       prometheus.Gauge

	AlertSeverity *prometheus.GaugeVec

	VolSurfaceQualityScore *prometheus.GaugeVec
}

// NewFamilies builds every family (unregistered). Call RegisterAll to
// wire them into a Registry under their groups.
func NewFamilies() *Families {
	return &Families{
		CycleSLABreachTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "g6_cycle_sla_breach_total",
			Help: "Total number of cycles that breached the configured SLA fraction.",
		}),
		DataGapSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "g6_data_gap_seconds",
			Help: "Seconds since the last successful cycle completed for any index.",
		}),
		LastSuccessCycleUnixtime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "g6_last_success_cycle_unixtime",
			Help: "Unix timestamp of the last cycle that completed without an index failure.",
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "g6_cycles_total",
			Help: "Total number of scheduler cycles executed.",
		}),
		MissingCyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "g6_missing_cycles_total",
			Help: "Total number of ticks where the gap since the last cycle start exceeded missing_cycle_factor x interval.",
		}),
		CycleBudgetSkipsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "g6_cycle_budget_skips_total",
			Help: "Total number of indices skipped because the cycle budget elapsed before they could be submitted.",
		}),
		IndexFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "g6_index_failure_total",
			Help: "Total number of index-level failures (e.g. spot fetch failed).",
		}, []string{"index"}),
		ParallelIndexTimeoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "g6_parallel_index_timeouts_total",
			Help: "Total number of per-index soft-timeout breaches, by index.",
		}, []string{"index"}),
		EventsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "g6_events_dropped_total",
			Help: "Total number of bus/SSE events dropped, by reason.",
		}, []string{"reason"}),
		EventsForcedFullTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "g6_events_forced_full_total",
			Help: "Total number of times the snapshot guard forced a fresh panel_full, by reason.",
		}, []string{"reason"}),
		PanelUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "g6_panel_updates_total",
			Help: "Total number of panel_update/panel_diff events published.",
		}),
		CacheHitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "g6_quote_cache_hit_total",
			Help: "Total number of quote cache hits.",
		}),
		CacheMissTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "g6_quote_cache_miss_total",
			Help: "Total number of quote cache misses.",
		}),
		ProviderCircuitOpenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "g6_provider_circuit_open_total",
			Help: "Total number of times a provider's circuit breaker opened.",
		}, []string{"provider"}),
		ProviderRateLimitCooldownTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "g6_provider_rate_limit_cooldown_total",
			Help: "Total number of times a provider's rate limiter entered cooldown.",
		}, []string{"provider"}),
		AdaptiveDetailMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "g6_adaptive_detail_mode",
			Help: "Current detail mode per index (0=full, 1=band, 2=agg).",
		}, []string{"index"}),
		SeriesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "g6_series_active",
			Help: "Active per-option time series, sampled for the cardinality guard.",
		}),
		AlertSeverity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "g6_alert_severity",
			Help: "Current severity (0=info,1=warn,2=critical) per alert type/index/expiry.",
		}, []string{"type", "index", "expiry"}),
		VolSurfaceQualityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "g6_vol_surface_quality_score",
			Help: "Volatility surface quality score per index/expiry.",
		}, []string{"index", "expiry"}),
	}
}

// RegisterAll registers every family under its metric group,
// respecting reg's GroupPolicy. Per-option families (AlertSeverity,
// VolSurfaceQualityScore, AdaptiveDetailMode) are the ones the
// cardinality guard cares about; they live under groups an operator can
// disable independently of cheap process-wide counters.
func (f *Families) RegisterAll(reg *Registry) {
	reg.Register(GroupScheduler, f.CycleSLABreachTotal)
	reg.Register(GroupScheduler, f.DataGapSeconds)
	reg.Register(GroupScheduler, f.LastSuccessCycleUnixtime)
	reg.Register(GroupScheduler, f.CyclesTotal)
	reg.Register(GroupScheduler, f.MissingCyclesTotal)
	reg.Register(GroupScheduler, f.CycleBudgetSkipsTotal)

	reg.Register(GroupPipeline, f.IndexFailureTotal)
	reg.Register(GroupPipeline, f.ParallelIndexTimeoutsTotal)

	reg.Register(GroupSSE, f.EventsDroppedTotal)
	reg.Register(GroupSSE, f.EventsForcedFullTotal)
	reg.Register(GroupPanels, f.PanelUpdatesTotal)

	reg.Register(GroupCache, f.CacheHitTotal)
	reg.Register(GroupCache, f.CacheMissTotal)

	reg.Register(GroupProvider, f.ProviderCircuitOpenTotal)
	reg.Register(GroupProvider, f.ProviderRateLimitCooldownTotal)

	reg.Register(GroupAdaptive, f.AdaptiveDetailMode)
	reg.Register(GroupAdaptive, f.SeriesActive)

	reg.Register(GroupAlerts, f.AlertSeverity)

	reg.Register(GroupAnalyticsVol, f.VolSurfaceQualityScore)
}
