// Package config assembles G6's configuration in a single pass with
// precedence CLI > env > file > defaults (spec §4.8), the same layering
// order the teacher's internal/config/config.go documents, extended
// with an optional JSON file tier between env and defaults since the
// teacher itself has no file tier (it only has .env, which this module
// also keeps via godotenv for the env tier itself).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/g6/internal/adaptive"
	"github.com/aristath/g6/internal/alerts"
	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/metrics"
	"github.com/aristath/g6/internal/pipeline"
	"github.com/aristath/g6/internal/provider"
	"github.com/aristath/g6/internal/scheduler"
	"github.com/aristath/g6/internal/sse"
)

// IndexSpec is one configured index (spec §3 IndexConfig, as data).
type IndexSpec struct {
	Symbol                string             `json:"symbol"`
	StrikeStep            float64            `json:"strike_step"`
	StrikesITM            int                `json:"strikes_itm"`
	StrikesOTM            int                `json:"strikes_otm"`
	ExpiryTags            []domain.ExpiryTag `json:"expiry_tags"`
	WeekdayAnchor         int                `json:"weekday_anchor"`
	MonthlyWeekdayOrdinal int                `json:"monthly_weekday_ordinal"`
}

// Config is the fully assembled, immutable-after-Load configuration for
// one G6 process.
type Config struct {
	DataDir        string
	PanelsDir      string
	LegacyPanelsDir string // empty disables legacy dual-write
	StateDir       string
	AlertsStateDir string
	AnalyticsDir   string

	LogLevel string
	LogPretty bool
	DevMode   bool

	StateBackend string // "file" or "sqlite"
	StrictMode   bool   // reject deprecated keys instead of warning

	Indices []IndexSpec

	Scheduler  scheduler.Config
	Thresholds pipeline.Thresholds
	RateLimiter provider.RateLimiterConfig
	CircuitBreaker provider.CircuitBreakerConfig
	Retry      provider.RetryConfig
	Adaptive   adaptive.Config
	Alerts     map[domain.AlertType]alerts.TypeConfig
	AlertAggregator alerts.AggregatorConfig
	SSE        sse.Config
	SSEToken   string
	MetricsGroups metrics.GroupPolicy

	CardinalityMaxSeries        int
	CardinalityMinDisableSeconds int
	CardinalityReenableFraction float64

	KiteTimeout time.Duration

	EventBusCapacity int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
}

var symbolPattern = regexp.MustCompile(`^[A-Z]+$`)

// Load assembles configuration: defaults, then an optional JSON file at
// filePath, then environment variables (including a loaded .env file,
// as the teacher's Load does via godotenv), then dataDirOverride as the
// highest-priority CLI flag. Returns a validated Config.
func Load(filePath string, dataDirOverride string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if filePath != "" {
		if err := applyFile(cfg, filePath); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", filePath, err)
		}
	}

	applyEnv(cfg)

	dataDir := dataDirOverride
	if dataDir == "" {
		dataDir = getEnv("G6_DATA_DIR", cfg.DataDir)
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	cfg.DataDir = absDataDir
	if cfg.PanelsDir == "" {
		cfg.PanelsDir = filepath.Join(absDataDir, "panels")
	}
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(absDataDir, "state")
	}
	if cfg.AlertsStateDir == "" {
		cfg.AlertsStateDir = filepath.Join(absDataDir, "state", "alerts")
	}
	if cfg.AnalyticsDir == "" {
		cfg.AnalyticsDir = filepath.Join(absDataDir, "analytics")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns the documented defaults for every sub-config (spec
// §4.1-4.8), matching each package's own Default*/zero-value semantics.
func defaults() *Config {
	return &Config{
		DataDir:      "./data",
		LogLevel:     "info",
		StateBackend: "file",

		Scheduler:  scheduler.DefaultConfig(),
		Thresholds: pipeline.DefaultThresholds(),
		RateLimiter: provider.RateLimiterConfig{
			QPS:                  10,
			ConsecutiveThreshold: 5,
			CooldownDuration:     20 * time.Second,
		},
		CircuitBreaker: provider.CircuitBreakerConfig{
			FailureThreshold:  5,
			BaseBackoff:       2 * time.Second,
			MaxBackoff:        5 * time.Minute,
			HalfOpenSuccesses: 2,
			JitterFraction:    0.2,
		},
		Retry: provider.RetryConfig{
			MaxAttempts:    3,
			BaseBackoff:    200 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			JitterFraction: 0.3,
		},
		Adaptive: adaptive.Config{
			MaxSLABreachStreak: 3,
			MinHealthCycles:    5,
			MinDetailMode:      domain.DetailFull,
			MaxDetailMode:      domain.DetailAgg,
		},
		SSE: sse.DefaultConfig(),

		CardinalityMaxSeries:         50000,
		CardinalityMinDisableSeconds: 300,
		CardinalityReenableFraction:  0.8,

		KiteTimeout:      5 * time.Second,
		EventBusCapacity: 2048,
	}
}

// fileOverrides mirrors the subset of Config an operator may set via a
// JSON file, as pointers so unset keys are distinguishable from zero
// values and don't clobber defaults.
type fileOverrides struct {
	DataDir         *string      `json:"data_dir"`
	PanelsDir       *string      `json:"panels_dir"`
	LegacyPanelsDir *string      `json:"legacy_panels_dir"`
	StateDir        *string      `json:"state_dir"`
	AlertsStateDir  *string      `json:"alerts_state_dir"`
	AnalyticsDir    *string      `json:"analytics_dir"`
	LogLevel        *string      `json:"log_level"`
	LogPretty       *bool        `json:"log_pretty"`
	StateBackend    *string      `json:"state_backend"`
	StrictMode      *bool        `json:"strict_mode"`
	Indices         []IndexSpec  `json:"indices"`
	SSEToken        *string      `json:"sse_token"`
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileOverrides
	if err := json.Unmarshal(raw, &f); err != nil {
		return err
	}

	if f.DataDir != nil {
		cfg.DataDir = *f.DataDir
	}
	if f.PanelsDir != nil {
		cfg.PanelsDir = *f.PanelsDir
	}
	if f.LegacyPanelsDir != nil {
		cfg.LegacyPanelsDir = *f.LegacyPanelsDir
	}
	if f.StateDir != nil {
		cfg.StateDir = *f.StateDir
	}
	if f.AlertsStateDir != nil {
		cfg.AlertsStateDir = *f.AlertsStateDir
	}
	if f.AnalyticsDir != nil {
		cfg.AnalyticsDir = *f.AnalyticsDir
	}
	if f.LogLevel != nil {
		cfg.LogLevel = *f.LogLevel
	}
	if f.LogPretty != nil {
		cfg.LogPretty = *f.LogPretty
	}
	if f.StateBackend != nil {
		cfg.StateBackend = *f.StateBackend
	}
	if f.StrictMode != nil {
		cfg.StrictMode = *f.StrictMode
	}
	if len(f.Indices) > 0 {
		cfg.Indices = f.Indices
	}
	if f.SSEToken != nil {
		cfg.SSEToken = *f.SSEToken
	}

	return nil
}

// applyEnv overlays environment variables onto cfg, taking precedence
// over file/defaults but not over a CLI override applied afterward by
// Load. Mirrors the teacher's getEnv/getEnvAsInt/getEnvAsBool helpers.
func applyEnv(cfg *Config) {
	cfg.LogLevel = getEnv("G6_LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = getEnvAsBool("G6_LOG_PRETTY", cfg.LogPretty)
	cfg.DevMode = getEnvAsBool("G6_DEV_MODE", cfg.DevMode)
	cfg.StateBackend = getEnv("G6_STATE_BACKEND", cfg.StateBackend)
	cfg.StrictMode = getEnvAsBool("G6_STRICT_MODE", cfg.StrictMode)
	cfg.SSEToken = getEnv("G6_SSE_TOKEN", cfg.SSEToken)

	cfg.Scheduler.Interval = getEnvAsDuration("G6_COLLECTION_INTERVAL", cfg.Scheduler.Interval)
	cfg.Scheduler.Interval = getEnvAsDuration("G6_CYCLE_INTERVAL", cfg.Scheduler.Interval)
	cfg.Scheduler.MaxCycles = getEnvAsInt("G6_MAX_CYCLES", cfg.Scheduler.MaxCycles)
	cfg.Scheduler.ParallelIndexWorkers = getEnvAsInt("G6_PARALLEL_INDEX_WORKERS", cfg.Scheduler.ParallelIndexWorkers)

	cfg.KiteTimeout = getEnvAsDuration("G6_PROVIDER_TIMEOUT", cfg.KiteTimeout)

	cfg.CardinalityMaxSeries = getEnvAsInt("G6_CARDINALITY_MAX_SERIES", cfg.CardinalityMaxSeries)

	cfg.MetricsGroups.EnableGroups = splitEnvList(getEnv("G6_ENABLE_METRIC_GROUPS", ""), cfg.MetricsGroups.EnableGroups)
	cfg.MetricsGroups.DisableGroups = splitEnvList(getEnv("G6_DISABLE_METRIC_GROUPS", ""), cfg.MetricsGroups.DisableGroups)

	cfg.R2AccountID = getEnv("G6_R2_ACCOUNT_ID", cfg.R2AccountID)
	cfg.R2AccessKeyID = getEnv("G6_R2_ACCESS_KEY_ID", cfg.R2AccessKeyID)
	cfg.R2SecretAccessKey = getEnv("G6_R2_SECRET_ACCESS_KEY", cfg.R2SecretAccessKey)
	cfg.R2BucketName = getEnv("G6_R2_BUCKET_NAME", cfg.R2BucketName)
}

// Validate enforces spec §4.8's schema rules: index symbols match
// [A-Z]+, strike steps are positive, expiry tags are in the allowed
// set, and sla_fraction/strike_coverage_ok fall within their documented
// ranges.
func (c *Config) Validate() error {
	for _, idx := range c.Indices {
		if !symbolPattern.MatchString(idx.Symbol) {
			return fmt.Errorf("index symbol %q must match [A-Z]+", idx.Symbol)
		}
		if idx.StrikeStep <= 0 {
			return fmt.Errorf("index %s: strike_step must be positive", idx.Symbol)
		}
		for _, tag := range idx.ExpiryTags {
			if !domain.ValidExpiryTag(tag) {
				return fmt.Errorf("index %s: invalid expiry tag %q", idx.Symbol, tag)
			}
		}
	}

	if c.Scheduler.SLAFraction <= 0 || c.Scheduler.SLAFraction > 1 {
		return fmt.Errorf("sla_fraction must be in (0,1], got %v", c.Scheduler.SLAFraction)
	}
	if c.Thresholds.StrikeCoverageOK < 0 || c.Thresholds.StrikeCoverageOK > 1 {
		return fmt.Errorf("strike_coverage_ok must be in [0,1], got %v", c.Thresholds.StrikeCoverageOK)
	}
	if c.Thresholds.FieldCoverageOK < 0 || c.Thresholds.FieldCoverageOK > 1 {
		return fmt.Errorf("field_coverage_ok must be in [0,1], got %v", c.Thresholds.FieldCoverageOK)
	}
	if c.StateBackend != "file" && c.StateBackend != "sqlite" {
		return fmt.Errorf("state_backend must be \"file\" or \"sqlite\", got %q", c.StateBackend)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// splitEnvList parses a comma-separated env value into a string slice,
// returning defaultValue unchanged when the env var is unset.
func splitEnvList(value string, defaultValue []string) []string {
	if value == "" {
		return defaultValue
	}
	var out []string
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			if i > start {
				out = append(out, value[start:i])
			}
			start = i + 1
		}
	}
	return out
}
