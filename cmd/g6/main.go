// Command g6 is the collection-and-observability process: it loads
// configuration, wires the pipeline/alerts/adaptive/panels/events
// stack, runs the fixed-interval scheduler, and serves the SSE and
// metrics HTTP endpoints until terminated. Orchestration shape follows
// the teacher's cmd/server/main.go: config -> logger -> components ->
// background loops started in goroutines -> signal wait -> graceful
// shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/g6/internal/adaptive"
	"github.com/aristath/g6/internal/alerts"
	"github.com/aristath/g6/internal/backup"
	"github.com/aristath/g6/internal/config"
	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/events"
	"github.com/aristath/g6/internal/expiry"
	"github.com/aristath/g6/internal/holiday"
	"github.com/aristath/g6/internal/metrics"
	"github.com/aristath/g6/internal/panels"
	"github.com/aristath/g6/internal/pipeline"
	"github.com/aristath/g6/internal/provider"
	"github.com/aristath/g6/internal/scheduler"
	"github.com/aristath/g6/internal/sse"
	"github.com/aristath/g6/internal/state"
	"github.com/aristath/g6/internal/strikes"
	"github.com/aristath/g6/pkg/logger"
)

const schemaVersion = "panel-envelope-v1"

func main() {
	configPath := flag.String("config", "", "path to an optional JSON config file")
	dataDir := flag.String("data-dir", "", "overrides G6_DATA_DIR and the config file's data_dir")
	addr := flag.String("addr", ":8080", "HTTP listen address for /summary/* and /metrics")
	flag.Parse()

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Info().Str("data_dir", cfg.DataDir).Str("state_backend", cfg.StateBackend).Msg("starting g6")

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open state store")
	}

	indices := buildIndices(cfg)
	calendar := holiday.NewStaticCalendar(nil)

	prov := buildProvider(cfg, store, log)

	resolver := expiry.NewResolver(calendar)
	universe := strikes.NewUniverse(64)
	quoteCache := provider.NewQuoteCache(2 * time.Second)

	pl := &pipeline.Pipeline{
		Resolver:   resolver,
		Universe:   universe,
		Provider:   prov,
		Cache:      quoteCache,
		Refinement: pipeline.NewRefinementTracker(),
		Thresholds: cfg.Thresholds,
	}

	alertStreaks, err := store.LoadAlertStreaks()
	if err != nil {
		log.Warn().Err(err).Msg("load alert streaks, starting clean")
	}
	severity := alerts.NewSeverityStateMachine(cfg.Alerts)
	severity.Restore(alertStreaks)
	aggregator := alerts.NewAggregator(cfg.AlertAggregator, severity)

	adaptiveCtl := adaptive.NewController(cfg.Adaptive)

	panelRegistry := panels.NewRegistry(4)
	panelWriter := panels.NewWriter(cfg.PanelsDir, cfg.LegacyPanelsDir)

	bus := events.NewBus(cfg.EventBusCapacity, nil)

	metricsRegistry := metrics.New(cfg.MetricsGroups)
	families := metrics.NewFamilies()
	families.RegisterAll(metricsRegistry)
	cardinalityGuard := metrics.NewCardinalityGuard(cfg.CardinalityMaxSeries, time.Duration(cfg.CardinalityMinDisableSeconds)*time.Second, cfg.CardinalityReenableFraction)

	exporter := buildExporter(cfg, log)

	sseCfg := cfg.SSE
	sseCfg.Token = cfg.SSEToken
	publisher := sse.NewPublisher(bus, panelRegistry, sseCfg, schemaVersion, log)

	reporter := &cycleReporter{
		aggregator:    aggregator,
		severity:      severity,
		adaptiveCtl:   adaptiveCtl,
		panels:        panelRegistry,
		writer:        panelWriter,
		bus:           bus,
		publisher:     publisher,
		families:      families,
		cardinality:   cardinalityGuard,
		exporter:      exporter,
		store:         store,
		prov:          prov,
		promReg:       metricsRegistry.Prometheus(),
		log:           log,
	}

	executor := &scheduler.CycleExecutor{
		Indices:             indices,
		Work:                pl.Run,
		Calendar:            calendar,
		MarketCalendarIndex: firstSymbol(indices),
		Config:              cfg.Scheduler,
		Metrics:             families,
		Log:                 log,
	}

	sched := scheduler.NewScheduler(cfg.Scheduler, func(ctx context.Context, cycle int64, now time.Time) {
		report := executor.RunCycle(ctx, cycle, now)
		reporter.onCycle(ctx, cycle, report)
	}, log)

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"X-API-Token", "Last-Event-ID"},
	}))
	publisher.Routes(router)
	router.Handle("/metrics", promhttp.HandlerFor(metricsRegistry.Prometheus(), promhttp.HandlerOpts{}))

	httpServer := &http.Server{Addr: *addr, Handler: router}

	go func() {
		log.Info().Str("addr", *addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server")
		}
	}()

	sched.Start(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received")

	sched.Stop()
	reporter.persistFinal()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	publisher.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("close state store")
		}
	}

	log.Info().Msg("g6 stopped")
}

func buildIndices(cfg *config.Config) []*domain.IndexConfig {
	if len(cfg.Indices) == 0 {
		return []*domain.IndexConfig{{
			Symbol:     "NIFTY",
			StrikeStep: 50,
			ExpiryTags: []domain.ExpiryTag{domain.ExpiryThisWeek, domain.ExpiryNextWeek},
			StrikesITM: 10,
			StrikesOTM: 10,
		}}
	}
	out := make([]*domain.IndexConfig, len(cfg.Indices))
	for i, spec := range cfg.Indices {
		out[i] = &domain.IndexConfig{
			Symbol:                spec.Symbol,
			StrikeStep:            spec.StrikeStep,
			ExpiryTags:            spec.ExpiryTags,
			StrikesITM:            spec.StrikesITM,
			StrikesOTM:            spec.StrikesOTM,
			WeekdayAnchor:         spec.WeekdayAnchor,
			MonthlyWeekdayOrdinal: spec.MonthlyWeekdayOrdinal,
		}
	}
	return out
}

func firstSymbol(indices []*domain.IndexConfig) string {
	if len(indices) == 0 {
		return ""
	}
	return indices[0].Symbol
}

func openStore(cfg *config.Config) (state.Store, error) {
	switch cfg.StateBackend {
	case "sqlite":
		if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		return state.NewSQLiteStore(filepath.Join(cfg.StateDir, "g6.db"))
	default:
		return state.NewFileStore(cfg.StateDir, cfg.AlertsStateDir), nil
	}
}

func buildProvider(cfg *config.Config, store state.Store, log zerolog.Logger) *provider.Composite {
	prices := map[string]float64{}
	for _, idx := range cfg.Indices {
		prices[idx.Symbol] = 20000
	}
	if len(prices) == 0 {
		prices["NIFTY"] = 20000
	}

	members := []provider.Client{newSyntheticProvider("primary", prices)}
	composite := provider.NewComposite(members, cfg.RateLimiter, cfg.CircuitBreaker, func(from, to string) {
		log.Warn().Str("from", from).Str("to", to).Msg("provider failover")
	})

	circuitStates, err := store.LoadCircuitStates()
	if err != nil {
		log.Warn().Err(err).Msg("load circuit states, starting clean")
	}
	rateStates, err := store.LoadRateLimiterStates()
	if err != nil {
		log.Warn().Err(err).Msg("load rate limiter states, starting clean")
	}
	composite.Restore(circuitStates, rateStates)

	return composite
}

func buildExporter(cfg *config.Config, log zerolog.Logger) *backup.Exporter {
	var uploader backup.Uploader
	if cfg.R2AccountID != "" && cfg.R2BucketName != "" {
		u, err := backup.NewS3Uploader(context.Background(), cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2BucketName)
		if err != nil {
			log.Warn().Err(err).Msg("R2 uploader unavailable, analytics exports stay local-only")
		} else {
			uploader = u
		}
	}
	return backup.NewExporter(cfg.AnalyticsDir, uploader, log)
}
